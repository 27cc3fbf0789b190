package schema

import (
	"strings"
	"testing"
)

func TestExtract_Basic(t *testing.T) {
	sql := `
    CREATE TABLE users (
        id INT PRIMARY KEY,
        name VARCHAR(100)
    );
    `
	s := Extract(sql)
	if len(s.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(s.Tables))
	}
	u := s.Tables[0]
	if u.Name != "users" {
		t.Errorf("table name = %q", u.Name)
	}
	if len(u.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d: %#v", len(u.Columns), u.Columns)
	}
	if u.Columns[0].Name != "id" || u.Columns[0].Type != "INT" {
		t.Errorf("first column = %#v", u.Columns[0])
	}
	if len(u.PrimaryKey) != 1 || u.PrimaryKey[0] != "id" {
		t.Errorf("primary key = %v", u.PrimaryKey)
	}
}

func TestExtract_ForeignKey(t *testing.T) {
	sql := `
    CREATE TABLE orders (
        order_id INT PRIMARY KEY,
        user_id INT,
        FOREIGN KEY (user_id) REFERENCES users(id)
    );
    `
	s := Extract(sql)
	if len(s.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(s.Tables))
	}
	o := s.Tables[0]
	if len(o.ForeignKeys) != 1 {
		t.Fatalf("expected 1 foreign key, got %d", len(o.ForeignKeys))
	}
	fk := o.ForeignKeys[0]
	if len(fk.Columns) != 1 || fk.Columns[0] != "user_id" {
		t.Errorf("fk columns = %v", fk.Columns)
	}
	if fk.RefTable != "users" {
		t.Errorf("fk ref table = %q", fk.RefTable)
	}
	if len(fk.RefColumns) != 1 || fk.RefColumns[0] != "id" {
		t.Errorf("fk ref columns = %v", fk.RefColumns)
	}
}

func TestExtract_Empty(t *testing.T) {
	s := Extract("")
	if len(s.Tables) != 0 {
		t.Fatalf("expected no tables, got %d", len(s.Tables))
	}
}

func TestExtract_TableLevelPrimaryKey(t *testing.T) {
	sql := "CREATE TABLE pairs (\n  a INT,\n  b INT,\n  PRIMARY KEY (a, b)\n);"
	s := Extract(sql)
	if len(s.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(s.Tables))
	}
	pk := s.Tables[0].PrimaryKey
	if len(pk) != 2 || pk[0] != "a" || pk[1] != "b" {
		t.Errorf("primary key = %v", pk)
	}
	if len(s.Tables[0].Columns) != 2 {
		t.Errorf("columns = %#v", s.Tables[0].Columns)
	}
}

func TestExtract_OrderPreserved(t *testing.T) {
	sql := "CREATE TABLE zebra (id INT);\nCREATE TABLE apple (id INT);\n"
	s := Extract(sql)
	if len(s.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(s.Tables))
	}
	if s.Tables[0].Name != "zebra" || s.Tables[1].Name != "apple" {
		t.Errorf("tables out of dump order: %q, %q", s.Tables[0].Name, s.Tables[1].Name)
	}
}

func TestExtract_QuotedNames(t *testing.T) {
	sql := "CREATE TABLE `people` (\n  `id` INT PRIMARY KEY,\n  `full_name` TEXT\n);"
	s := Extract(sql)
	if len(s.Tables) != 1 || s.Tables[0].Name != "people" {
		t.Fatalf("tables = %#v", s.Tables)
	}
	if s.Tables[0].Columns[1].Name != "full_name" {
		t.Errorf("columns = %#v", s.Tables[0].Columns)
	}
}

func TestContext_Digest(t *testing.T) {
	sql := `CREATE TABLE orders (
  order_id INT PRIMARY KEY,
  user_id INT,
  FOREIGN KEY (user_id) REFERENCES users(id)
);`
	ctx := Extract(sql).Context()
	for _, want := range []string{"orders(order_id, user_id)", "pk=order_id", "fk=user_id->users(id)"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}

func TestContext_Empty(t *testing.T) {
	if got := Extract("SELECT 1;").Context(); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}
