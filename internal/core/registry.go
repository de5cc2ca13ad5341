package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog holds the table and procedure definitions available to workflows.
// Parameter binding kinds are resolved once, when a procedure is registered.
type Catalog struct {
	mu         sync.RWMutex
	tables     map[string]TableSpec
	procedures map[string]ProcedureSpec
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:     make(map[string]TableSpec),
		procedures: make(map[string]ProcedureSpec),
	}
}

// RegisterTable adds a table definition.
// Returns an error if a table with the same name is already registered.
func (c *Catalog) RegisterTable(t TableSpec) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[t.Name]; exists {
		return fmt.Errorf("table already registered: %s", t.Name)
	}
	if t.DisplayName == "" {
		t.DisplayName = t.Name
	}
	c.tables[t.Name] = t
	return nil
}

// RegisterProcedure adds a procedure definition. Every output table must
// already be registered.
func (c *Catalog) RegisterProcedure(p ProcedureSpec) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("procedure name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.procedures[p.Name]; exists {
		return fmt.Errorf("procedure already registered: %s", p.Name)
	}
	for _, t := range p.OutputTables {
		if _, ok := c.tables[t]; !ok {
			return fmt.Errorf("procedure %s: unknown output table %s", p.Name, t)
		}
	}

	params := make([]ParamSpec, len(p.Parameters))
	for i, param := range p.Parameters {
		param.Type = ResolveParamType(param.DeclaredType)
		params[i] = param
	}
	p.Parameters = params
	p.OutputTables = append([]string(nil), p.OutputTables...)

	c.procedures[p.Name] = p
	return nil
}

// Table returns a table definition by name.
func (c *Catalog) Table(name string) (TableSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[name]
	return t, ok
}

// Procedure returns a procedure definition by name.
func (c *Catalog) Procedure(name string) (ProcedureSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.procedures[name]
	return p, ok
}

// Tables returns all registered tables sorted by name.
func (c *Catalog) Tables() []TableSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]TableSpec, 0, len(c.tables))
	for _, t := range c.tables {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Procedures returns all registered procedures sorted by name.
func (c *Catalog) Procedures() []ProcedureSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]ProcedureSpec, 0, len(c.procedures))
	for _, p := range c.procedures {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ResolveTables checks that every name is a registered table.
// An empty list resolves to nil.
func (c *Catalog) ResolveTables(names []string) ([]string, error) {
	var unknown []string
	for _, n := range names {
		if _, ok := c.Table(n); !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown table: %s", strings.Join(unknown, ", "))
	}
	if len(names) == 0 {
		return nil, nil
	}
	return append([]string(nil), names...), nil
}

// TableCount returns the number of registered tables.
func (c *Catalog) TableCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

// DisplayLabel returns the display name, falling back to the name.
func (p ProcedureSpec) DisplayLabel() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}
