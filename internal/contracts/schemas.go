package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed schemas
var schemasFS embed.FS

const (
	ChangeEventType    = "ChangeEvent"
	ChangeEventVersion = "1.0.0"
)

var compiledSchemas = mustCompileSchemas()

// mustCompileSchemas компилирует все встроенные схемы; схемы - часть бинарника, поэтому ошибка фатальна
func mustCompileSchemas() map[string]*jsonschema.Schema {
	compiled, err := compileSchemas(schemasFS, "schemas/events")
	if err != nil {
		panic(fmt.Sprintf("contracts: %v", err))
	}
	return compiled
}

func compileSchemas(fsys fs.FS, root string) (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	var paths []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		// ресурсы добавляются все сразу, чтобы работали $ref между схемами
		if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("add schema resource %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk schemas: %w", err)
	}

	compiled := make(map[string]*jsonschema.Schema, len(paths))
	for _, path := range paths {
		schema, err := compiler.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", path, err)
		}
		key := schemaKey(strings.TrimPrefix(path, root+"/"))
		if key == "" {
			return nil, fmt.Errorf("unexpected schema path %s", path)
		}
		compiled[key] = schema
	}
	return compiled, nil
}

// schemaKey "change-event/v1.json" -> "ChangeEvent/1.0.0"
func schemaKey(rel string) string {
	parts := strings.Split(strings.TrimSuffix(rel, ".json"), "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "v") {
		return ""
	}
	caser := cases.Title(language.English)
	var name strings.Builder
	for _, p := range strings.Split(parts[0], "-") {
		name.WriteString(caser.String(p))
	}
	return name.String() + "/" + strings.TrimPrefix(parts[1], "v") + ".0.0"
}

// ValidateEvent проверяет тело сообщения по схеме типа и версии события
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	schema, ok := compiledSchemas[eventType+"/"+eventVersion]
	if !ok {
		return fmt.Errorf("schema for event '%s' version '%s' not found", eventType, eventVersion)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
