package config

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a loosely typed JSON object, as decoded by encoding/json into an interface{}.
type AttributeMap map[string]interface{}

// Decode decodes the attributes into out, matching keys against json tags. Keys without a
// matching field are an error.
func (am AttributeMap) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "error creating decoder for config")
	}
	return decoder.Decode(am)
}

// Has reports whether the key is set.
func (am AttributeMap) Has(key string) bool {
	_, ok := am[key]
	return ok
}

// Section returns the nested object stored under key, nil if it is missing or not an object.
func (am AttributeMap) Section(key string) AttributeMap {
	if sub, ok := am[key].(map[string]interface{}); ok {
		return sub
	}
	return nil
}
