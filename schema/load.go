package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileSchema is the YAML document shape of a schema definition file.
type fileSchema struct {
	Models []fileModel `yaml:"models"`
}

type fileModel struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	ID        fileField      `yaml:"id"`
	Fields    []fileField    `yaml:"fields"`
	Relations []fileRelation `yaml:"relations"`
}

type fileField struct {
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	Type    string `yaml:"type"`
	Default string `yaml:"default"`
}

type fileRelation struct {
	Name              string `yaml:"name"`
	Model             string `yaml:"model"`
	Inverse           string `yaml:"inverse"`
	Many              bool   `yaml:"many"`
	Required          bool   `yaml:"required"`
	Storage           string `yaml:"storage"`
	ForeignKey        string `yaml:"foreignKey"`
	JoinTable         string `yaml:"joinTable"`
	JoinColumn        string `yaml:"joinColumn"`
	JoinInverseColumn string `yaml:"joinInverseColumn"`
}

// Parse decodes a YAML schema definition and resolves it.
func Parse(data []byte) (*Schema, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	models := make([]*Model, 0, len(fs.Models))
	for _, fm := range fs.Models {
		id := fm.ID
		if id.Name == "" {
			id.Name = "id"
		}
		m := &Model{
			Name:  fm.Name,
			Table: fm.Table,
			ID:    fileFieldSpec(id),
		}
		for _, ff := range fm.Fields {
			m.Fields = append(m.Fields, fileFieldSpec(ff))
		}
		for _, fr := range fm.Relations {
			storage := Storage(fr.Storage)
			if storage == "" {
				storage = StorageOwner
			}
			m.AddRelations(&RelationField{
				Name:              fr.Name,
				RelatedTo:         fr.Model,
				Inverse:           fr.Inverse,
				Many:              fr.Many,
				Required:          fr.Required,
				Storage:           storage,
				ForeignKey:        fr.ForeignKey,
				JoinTable:         fr.JoinTable,
				JoinColumn:        fr.JoinColumn,
				JoinInverseColumn: fr.JoinInverseColumn,
			})
		}
		models = append(models, m)
	}
	return New(models...)
}

// Load reads and resolves a YAML schema definition file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: load %s: %w", path, err)
	}
	return Parse(data)
}

// Watch reloads the schema definition file whenever it changes on disk and
// delivers the result to the given callback. Reload errors are delivered
// with a nil schema; the previous schema stays in effect for the caller.
// Watch blocks until the context is cancelled.
func Watch(ctx context.Context, path string, reload func(*Schema, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema: watch: %w", err)
	}
	defer w.Close()
	// Watch the directory: editors replace files on save, which drops
	// watches registered on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("schema: watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload(Load(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			reload(nil, fmt.Errorf("schema: watch: %w", err))
		}
	}
}

func fileFieldSpec(ff fileField) *Field {
	t := FieldType(ff.Type)
	if t == "" {
		t = TypeString
	}
	return &Field{
		Name:    ff.Name,
		Column:  ff.Column,
		Type:    t,
		Default: DefaultKind(ff.Default),
	}
}
