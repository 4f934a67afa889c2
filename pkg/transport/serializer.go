package transport

import (
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/layerkit/layerkit/pkg/core"
)

// Serializer converts values to and from a wire format.
type Serializer interface {
	// ContentType is the media type written to Content-Type and Accept headers.
	ContentType() string

	// Serialize encodes v.
	Serialize(v any) core.Result[core.Failure, []byte]

	// Deserialize decodes data into target, which must be a pointer.
	Deserialize(data []byte, target any) core.Failure
}

// Decode deserializes data into a new T.
func Decode[T any](s Serializer, data []byte) core.Result[core.Failure, T] {
	var v T
	if f := s.Deserialize(data, &v); f != nil {
		return core.Err[T](f)
	}
	return core.Ok(v)
}

// JSONSerializer encodes values as JSON.
type JSONSerializer struct{}

// ContentType implements Serializer.
func (JSONSerializer) ContentType() string {
	return "application/json"
}

// Serialize implements Serializer.
func (JSONSerializer) Serialize(v any) core.Result[core.Failure, []byte] {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Err[[]byte](core.MappingFailure{
			Message: fmt.Sprintf("failed to serialize %s to JSON: %v", typeOf(v), err),
		})
	}
	return core.Ok(data)
}

// Deserialize implements Serializer.
func (JSONSerializer) Deserialize(data []byte, target any) core.Failure {
	if err := json.Unmarshal(data, target); err != nil {
		return core.MappingFailure{
			Message: fmt.Sprintf("failed to deserialize JSON into %s: %v", typeOf(target), err),
			Source:  string(data),
		}
	}
	return nil
}

// YAMLSerializer encodes values as YAML.
type YAMLSerializer struct{}

// ContentType implements Serializer.
func (YAMLSerializer) ContentType() string {
	return "application/yaml"
}

// Serialize implements Serializer.
func (YAMLSerializer) Serialize(v any) (res core.Result[core.Failure, []byte]) {
	// yaml.v3 panics on some unsupported values instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			res = core.Err[[]byte](core.MappingFailure{
				Message: fmt.Sprintf("failed to serialize %s to YAML: %v", typeOf(v), r),
			})
		}
	}()

	data, err := yaml.Marshal(v)
	if err != nil {
		return core.Err[[]byte](core.MappingFailure{
			Message: fmt.Sprintf("failed to serialize %s to YAML: %v", typeOf(v), err),
		})
	}
	return core.Ok(data)
}

// Deserialize implements Serializer.
func (YAMLSerializer) Deserialize(data []byte, target any) core.Failure {
	if err := yaml.Unmarshal(data, target); err != nil {
		return core.MappingFailure{
			Message: fmt.Sprintf("failed to deserialize YAML into %s: %v", typeOf(target), err),
			Source:  string(data),
		}
	}
	return nil
}

// SerializerFor returns the serializer for a content type, defaulting to JSON.
func SerializerFor(contentType string) Serializer {
	switch contentType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return YAMLSerializer{}
	default:
		return JSONSerializer{}
	}
}

func typeOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
