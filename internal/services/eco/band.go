package eco

import (
	"strings"

	"github.com/ternarybob/ecocalc/internal/models"
)

// SubBand distinguishes the lower and upper half of a SAP letter band
type SubBand string

const (
	SubBandLow  SubBand = "Low"
	SubBandHigh SubBand = "High"
)

// bandSeparator joins sub-band and letter in the matrix key, e.g. "Low_D"
const bandSeparator = "_"

// bandRange is the SAP score range of one letter band
type bandRange struct {
	Letter   string
	Min      int
	Max      int
	Midpoint int
}

// bandRanges is ordered from worst to best rating
var bandRanges = []bandRange{
	{Letter: "G", Min: 0, Max: 20, Midpoint: 15},
	{Letter: "F", Min: 21, Max: 38, Midpoint: 29},
	{Letter: "E", Min: 39, Max: 54, Midpoint: 46},
	{Letter: "D", Min: 55, Max: 68, Midpoint: 61},
	{Letter: "C", Min: 69, Max: 80, Midpoint: 74},
	{Letter: "B", Min: 81, Max: 91, Midpoint: 86},
	{Letter: "A", Min: 92, Max: 100, Midpoint: 96},
}

func lookupBandRange(letter string) (bandRange, bool) {
	for _, r := range bandRanges {
		if r.Letter == letter {
			return r, true
		}
	}
	return bandRange{}, false
}

// CompoundBand is a matrix band key such as "Low_D" or "High_B".
// Values built from an input that was already compound keep that input verbatim.
type CompoundBand struct {
	Sub    SubBand
	Letter string
	raw    string
}

// String returns the matrix key form
func (b CompoundBand) String() string {
	if b.raw != "" {
		return b.raw
	}
	return string(b.Sub) + bandSeparator + b.Letter
}

// IsCompound reports whether a band label is already in "Low_X"/"High_X" form
func IsCompound(band string) bool {
	return strings.Contains(band, bandSeparator)
}

// Classify converts a SAP band letter into its compound matrix key.
//
// Already-compound input is returned unchanged. A bare letter is uppercased and
// split at its midpoint when a score is given (score <= midpoint is Low), and
// defaults to Low without a score. Letters outside A-G are not rejected here;
// they become "Low_<letter>" and simply fail to match any matrix row.
func Classify(band string, score *int) CompoundBand {
	band = strings.TrimSpace(band)
	if IsCompound(band) {
		sub, letter, _ := strings.Cut(band, bandSeparator)
		return CompoundBand{Sub: SubBand(sub), Letter: letter, raw: band}
	}

	letter := strings.ToUpper(band)
	if score == nil {
		return CompoundBand{Sub: SubBandLow, Letter: letter}
	}
	return classifyScored(letter, *score)
}

func classifyScored(letter string, score int) CompoundBand {
	r, ok := lookupBandRange(letter)
	if !ok {
		return CompoundBand{Sub: SubBandLow, Letter: letter}
	}
	if score <= r.Midpoint {
		return CompoundBand{Sub: SubBandLow, Letter: letter}
	}
	return CompoundBand{Sub: SubBandHigh, Letter: letter}
}

// BandTable returns the letter band reference table
func BandTable() []models.BandInfo {
	table := make([]models.BandInfo, 0, len(bandRanges))
	for _, r := range bandRanges {
		table = append(table, models.BandInfo{
			Code:     r.Letter,
			Min:      r.Min,
			Max:      r.Max,
			Midpoint: r.Midpoint,
			Low:      string(SubBandLow) + bandSeparator + r.Letter,
			High:     string(SubBandHigh) + bandSeparator + r.Letter,
		})
	}
	return table
}
