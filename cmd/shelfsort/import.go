package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/shelfsort/pkg/math/vector"
	"github.com/orneryd/shelfsort/pkg/organize"
	"github.com/orneryd/shelfsort/pkg/storage"
)

// importFile is the on-disk import format. JSON is accepted too since it is
// valid YAML.
//
//	documents:
//	  - id: doc-1
//	    name: Invoice March
//	    embedding: [0.1, 0.9, 0.0]
//	    location: {shelf: 1, folder: A}
type importFile struct {
	Documents []importDocument `yaml:"documents"`
}

type importDocument struct {
	ID        string             `yaml:"id"`
	Name      string             `yaml:"name"`
	Embedding []float32          `yaml:"embedding"`
	Location  *organize.Location `yaml:"location"`
}

// parseImport decodes documents from r. An empty or all-zero embedding is
// stored as absent.
func parseImport(r io.Reader) ([]*storage.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var f importFile
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	seen := make(map[string]bool, len(f.Documents))
	docs := make([]*storage.Document, 0, len(f.Documents))
	for i, d := range f.Documents {
		if d.ID == "" {
			return nil, fmt.Errorf("document %d: missing id", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("document %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true

		if d.Location != nil {
			if d.Location.Shelf < 1 || len(d.Location.Folder) != 1 {
				return nil, fmt.Errorf("document %q: invalid location %s", d.ID, d.Location)
			}
		}

		name := d.Name
		if name == "" {
			name = d.ID
		}
		docs = append(docs, &storage.Document{
			ID:        d.ID,
			Name:      name,
			Embedding: vector.Present(d.Embedding),
			Location:  d.Location,
		})
	}
	return docs, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	docs, err := parseImport(f)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	absent := 0
	for _, d := range docs {
		if err := a.engine.PutDocument(d); err != nil {
			return fmt.Errorf("failed to store %s: %w", d.ID, err)
		}
		if !d.Embedding.IsPresent() {
			absent++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d documents (%d without embeddings)\n", len(docs), absent)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.engine.AllDocuments()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDocuments(docs))
	return nil
}
