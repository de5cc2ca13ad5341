// Package schema loads the table and procedure catalog from a YAML file.
//
// A catalog file looks like:
//
//	tables:
//	  - name: orders
//	    displayName: Orders
//	    description: Order headers for the period
//	procedures:
//	  - name: build_period_orders
//	    displayName: Build period orders
//	    parameters:
//	      - {name: start_date, type: integer, required: true}
//	      - {name: end_date, type: integer, required: true}
//	    outputTables: [orders]
package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/dataporter/internal/core"
	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout.
type File struct {
	Tables     []core.TableSpec     `yaml:"tables"`
	Procedures []core.ProcedureSpec `yaml:"procedures"`
}

// LoadFile reads and registers a catalog file.
func LoadFile(path string) (*core.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog and registers every table and procedure.
// Unknown fields are rejected so typos do not silently drop settings.
func Parse(r io.Reader) (*core.Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return Build(f)
}

// Build registers the contents of f into a new catalog.
func Build(f File) (*core.Catalog, error) {
	cat := core.NewCatalog()
	for _, t := range f.Tables {
		if err := cat.RegisterTable(t); err != nil {
			return nil, err
		}
	}
	for _, p := range f.Procedures {
		if err := cat.RegisterProcedure(p); err != nil {
			return nil, err
		}
	}
	return cat, nil
}
