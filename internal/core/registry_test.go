package core

import (
	"testing"
)

func mustRegisterTable(t *testing.T, c *Catalog, spec TableSpec) {
	t.Helper()
	if err := c.RegisterTable(spec); err != nil {
		t.Fatalf("RegisterTable(%s) error = %v", spec.Name, err)
	}
}

func wantError(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Errorf("error = nil, want %q", want)
		return
	}
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestCatalogRegister(t *testing.T) {
	c := NewCatalog()
	mustRegisterTable(t, c, TableSpec{Name: "orders"})
	mustRegisterTable(t, c, TableSpec{Name: "accounts", DisplayName: "Accounts"})

	wantError(t, c.RegisterTable(TableSpec{Name: "orders"}), "table already registered: orders")
	wantError(t, c.RegisterTable(TableSpec{Name: " "}), "table name is required")

	orders, ok := c.Table("orders")
	if !ok {
		t.Fatal("Table(orders) not found")
	}
	if orders.DisplayName != "orders" {
		t.Errorf("DisplayName = %q, want it to default to the name", orders.DisplayName)
	}

	var names []string
	for _, tbl := range c.Tables() {
		names = append(names, tbl.Name)
	}
	if !equalStrings(names, []string{"accounts", "orders"}) {
		t.Errorf("Tables() = %v, want sorted [accounts orders]", names)
	}
	if got := c.TableCount(); got != 2 {
		t.Errorf("TableCount() = %d, want 2", got)
	}
}

func TestCatalogRegisterProcedure(t *testing.T) {
	c := NewCatalog()
	mustRegisterTable(t, c, TableSpec{Name: "orders"})

	err := c.RegisterProcedure(ProcedureSpec{
		Name: "load",
		Parameters: []ParamSpec{
			{Name: "start", DeclaredType: "integer"},
			{Name: "end", DeclaredType: "DATE"},
			{Name: "rate", DeclaredType: "numeric"},
			{Name: "tag", DeclaredType: "varchar"},
		},
		OutputTables: []string{"orders"},
	})
	if err != nil {
		t.Fatalf("RegisterProcedure() error = %v", err)
	}

	p, ok := c.Procedure("load")
	if !ok {
		t.Fatal("Procedure(load) not found")
	}
	want := []ParamType{ParamInt, ParamDate, ParamDecimal, ParamText}
	if len(p.Parameters) != len(want) {
		t.Fatalf("parameters = %d, want %d", len(p.Parameters), len(want))
	}
	for i, param := range p.Parameters {
		if param.Type != want[i] {
			t.Errorf("parameter %s type = %v, want %v", param.Name, param.Type, want[i])
		}
	}
	if got := p.DisplayLabel(); got != "load" {
		t.Errorf("DisplayLabel() = %q, want load", got)
	}

	wantError(t,
		c.RegisterProcedure(ProcedureSpec{Name: "other", OutputTables: []string{"missing"}}),
		"procedure other: unknown output table missing")
	wantError(t, c.RegisterProcedure(ProcedureSpec{Name: "load"}), "procedure already registered: load")
	wantError(t, c.RegisterProcedure(ProcedureSpec{}), "procedure name is required")
}

func TestCatalogResolveTables(t *testing.T) {
	c := NewCatalog()
	mustRegisterTable(t, c, TableSpec{Name: "a"})
	mustRegisterTable(t, c, TableSpec{Name: "b"})

	got, err := c.ResolveTables([]string{"b", "a"})
	if err != nil {
		t.Fatalf("ResolveTables() error = %v", err)
	}
	if !equalStrings(got, []string{"b", "a"}) {
		t.Errorf("ResolveTables() = %v, want order preserved [b a]", got)
	}

	got, err = c.ResolveTables(nil)
	if err != nil || got != nil {
		t.Errorf("ResolveTables(nil) = %v, %v, want nil, nil", got, err)
	}

	_, err = c.ResolveTables([]string{"a", "x", "y"})
	wantError(t, err, "unknown table: x, y")
	if code := MapError(err).Code; code != "TBL001" {
		t.Errorf("code = %s, want TBL001", code)
	}
}

func TestProcedureDisplayLabel(t *testing.T) {
	p := ProcedureSpec{Name: "load_period", DisplayName: "Load Period"}
	if got := p.DisplayLabel(); got != "Load Period" {
		t.Errorf("DisplayLabel() = %q, want Load Period", got)
	}
}
