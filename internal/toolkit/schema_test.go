package toolkit

import (
	"reflect"
	"testing"
)

type samplePingParams struct {
	Message string `json:"Message" schema:"type=string;description=Message to echo"`
}

type sampleCompileParams struct {
	ForceRecompile bool   `json:"ForceRecompile" schema:"type=boolean;default=false"`
	WaitForReset   bool   `json:"WaitForReset" schema:"type=boolean;default=false"`
	RequestId      string `json:"RequestId" schema:"type=string;default=;description=optional correlation id"`
}

func TestGenerateSchemaRequiredWithoutDefault(t *testing.T) {
	schema, err := GenerateSchema(reflect.TypeOf(samplePingParams{}))
	if err != nil {
		t.Fatalf("GenerateSchema error = %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("expected object type, got %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "Message" {
		t.Errorf("expected required=[Message], got %v", schema["required"])
	}
	props := schema["properties"].(map[string]any)
	msg := props["Message"].(map[string]any)
	if msg["type"] != "string" {
		t.Errorf("expected string type, got %v", msg["type"])
	}
}

func TestGenerateSchemaDefaultsAreNotRequired(t *testing.T) {
	schema, err := GenerateSchema(reflect.TypeOf(sampleCompileParams{}))
	if err != nil {
		t.Fatalf("GenerateSchema error = %v", err)
	}
	if _, hasRequired := schema["required"]; hasRequired {
		t.Errorf("expected no required list when all fields default, got %v", schema["required"])
	}
	props := schema["properties"].(map[string]any)
	force := props["ForceRecompile"].(map[string]any)
	if force["default"] != false {
		t.Errorf("expected default=false, got %v", force["default"])
	}
}

func TestGenerateSchemaRejectsNonStruct(t *testing.T) {
	if _, err := GenerateSchema(reflect.TypeOf("not a struct")); err == nil {
		t.Error("expected error for non-struct type")
	}
}
