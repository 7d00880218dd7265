package state

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Rules is the immutable configuration of a room.
type Rules struct {
	Height         int  `mapstructure:"height" json:"height"`
	Width          int  `mapstructure:"width" json:"width"`
	Specials       bool `mapstructure:"specials" json:"specials"`
	Generator      int  `mapstructure:"generator" json:"generator"`
	EntryDelay     int  `mapstructure:"entrydelay" json:"entrydelay"`
	RotationSystem int  `mapstructure:"rotationsystem" json:"rotationsystem"`
	TSpin          bool `mapstructure:"tspin" json:"tspin"`
	HoldPiece      bool `mapstructure:"holdpiece" json:"holdpiece"`
	NextPiece      int  `mapstructure:"nextpiece" json:"nextpiece"`
}

func DefaultRules() Rules {
	return Rules{
		Height:         24,
		Width:          12,
		Specials:       true,
		Generator:      1,
		EntryDelay:     0,
		RotationSystem: 1,
		TSpin:          true,
		HoldPiece:      true,
		NextPiece:      3,
	}
}

// DecodeRules reads a rules document. Missing keys fall back to defaults and
// values are converted loosely ("20" and 20.0 both decode to 20).
func DecodeRules(doc map[string]interface{}) (Rules, error) {
	rules := DefaultRules()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rules,
	})
	if err != nil {
		return Rules{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return Rules{}, fmt.Errorf("invalid rules: %w", err)
	}
	return rules, nil
}

// ToMap renders the rules as a document using their mapstructure keys.
func (r Rules) ToMap() map[string]interface{} {
	out := make(map[string]interface{})
	// Struct to map decoding cannot fail for this type.
	_ = mapstructure.Decode(r, &out)
	return out
}

// MergeRules applies each override bag in order over the defaults and returns
// the resulting document. Known keys are normalised to their typed value;
// unknown keys are kept as given.
func MergeRules(overrides ...map[string]interface{}) (map[string]interface{}, error) {
	doc := DefaultRules().ToMap()
	for _, o := range overrides {
		for k, v := range o {
			doc[k] = v
		}
	}
	rules, err := DecodeRules(doc)
	if err != nil {
		return nil, err
	}
	for k, v := range rules.ToMap() {
		doc[k] = v
	}
	return doc, nil
}
