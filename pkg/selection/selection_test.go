package selection

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/nttrun/pkg/suite"
)

func TestBasket_MatchTags(t *testing.T) {
	tests := []struct {
		basket string
		name   string
		tags   []string
		want   bool
	}{
		{basket: "", name: "", want: true},
		{basket: "", name: "foo", tags: []string{"@wip"}, want: true},

		{basket: "-r fo.", name: "foobar", want: true},
		{basket: "-r foo|bar", name: "bar", want: true},
		{basket: "-r foo", name: "bar", want: false},
		{basket: "-x fo.", name: "foo", want: false},
		{basket: "-r foo -r bar", name: "foo", want: false},
		{basket: "-r foo -r bar", name: "foobar", want: true},
		{basket: "-r foo -x bar", name: "foobar", want: false},
		{basket: "-x foo|bar", name: "bar", want: false},
		{basket: "-x foo", name: "bar", want: true},
		{basket: "-x foo -x bar", name: "foo", want: true},

		{basket: "-X @foo|@bar", want: true},
		{basket: "-R foo", tags: []string{"@foo bar"}, want: true},
		{basket: "-R foo:bar", tags: []string{"@foo bar"}, want: true},
		{basket: "-R foo:bar", tags: []string{"@foo: bar"}, want: true},
		{basket: "-R :bar", tags: []string{"@foo bar"}, want: true},
		{basket: "-R :bar", tags: []string{"@foo", "@bar"}, want: false},
		{basket: "-R bar", tags: []string{"@foo bar"}, want: false},
		{basket: "-R bar", tags: []string{"@foo", "@bar"}, want: true},
		{basket: "-R foo", want: false},

		{basket: "-R foo -R bar", tags: []string{"@foo", "@bar"}, want: true},
		{basket: "-R foo -R wip", tags: []string{"@foo", "@bar"}, want: false},
		{basket: "-R foo -X bar", tags: []string{"@foo", "@bar"}, want: false},
		{basket: "-R foo -X wip", tags: []string{"@foo", "@bar"}, want: true},

		{basket: "-r foo -X @wip", name: "foo", tags: []string{"@foo"}, want: true},
		{basket: "-r foo -X @foo", name: "foo", tags: []string{"@foo"}, want: false},
		{basket: "-x foo -R @foo", name: "foo", tags: []string{"@foo"}, want: false},
	}
	for _, tt := range tests {
		b, err := NewBasket("test", strings.Fields(tt.basket)...)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.MatchTags(tt.name, tt.tags); got != tt.want {
			t.Errorf("Basket(%q).MatchTags(%q, %q) = %v, want %v", tt.basket, tt.name, tt.tags, got, tt.want)
		}
	}
}

func TestBasket_SubBaskets(t *testing.T) {
	tests := []struct {
		baskets string
		name    string
		want    bool
	}{
		{"-r foo:-r bar", "foo", true},
		{"-r foo:-r bar", "bar", true},
		{"-r foo:-r bar", "baz", false},
		{"-r foo:-x foo", "foo", true},
		{"-r foo -x bar:-x foo", "foobar", false},
		{"-r foo:-x foo:-x bar", "foobar", true},
	}
	for _, tt := range tests {
		b, err := NewBasket("root")
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range strings.Split(tt.baskets, ":") {
			sb, err := NewBasket("sub", strings.Fields(s)...)
			if err != nil {
				t.Fatal(err)
			}
			b.Baskets = append(b.Baskets, sb)
		}
		if got := b.MatchTags(tt.name, nil); got != tt.want {
			t.Errorf("baskets %q MatchTags(%q) = %v, want %v", tt.baskets, tt.name, got, tt.want)
		}
	}
}

func TestBasket_LoadBaskets(t *testing.T) {
	vars := map[string]string{
		"TEST_BASKET":        "stable::wip",
		"TEST_BASKET_stable": "-X @wip|@flaky",
	}
	lookup := func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	b, err := NewBasket("cli", "-r", "foo")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.LoadBaskets(lookup, "TEST_BASKET"); err != nil {
		t.Fatal(err)
	}
	if len(b.Baskets) != 2 {
		t.Fatalf("got %d baskets, want 2", len(b.Baskets))
	}
	tests := []struct {
		name string
		tags []string
		want bool
	}{
		{"foo", nil, true},
		{"foo", []string{"@wip"}, true},
		{"foo", []string{"@flaky"}, false},
		{"bar", nil, false},
		{"bar", []string{"@wip"}, false},
	}
	for _, tt := range tests {
		if got := b.MatchTags(tt.name, tt.tags); got != tt.want {
			t.Errorf("MatchTags(%q, %q) = %v, want %v", tt.name, tt.tags, got, tt.want)
		}
	}
}

func TestBasket_Errors(t *testing.T) {
	if _, err := NewBasket("bad", "-r", "("); err == nil {
		t.Error("expected error for invalid name regex")
	}
	if _, err := NewBasket("bad", "-R", "@a:("); err == nil {
		t.Error("expected error for invalid tag value regex")
	}
	if _, err := NewBasket("bad", "--unknown"); err == nil {
		t.Error("expected error for unknown flag")
	}
	if _, err := NewBasket("bad", "stray"); err == nil {
		t.Error("expected error for positional argument")
	}

	b := Basket{}
	if err := b.LoadBaskets(func(string) (string, bool) { return "x", true }, "K"); err == nil {
		t.Error("expected error when a basket definition is not flags")
	}
}

func TestBasket_IsEmpty(t *testing.T) {
	b, _ := NewBasket("empty")
	if !b.IsEmpty() {
		t.Error("basket without filters should be empty")
	}
	b, _ = NewBasket("r", "-r", "x")
	if b.IsEmpty() {
		t.Error("basket with a filter should not be empty")
	}
}

func TestExpr(t *testing.T) {
	tc := suite.NewTest("m1.tc_a", "m1", "@wip", "@owner: core")
	tests := []struct {
		src  string
		want bool
	}{
		{`name == "m1.tc_a"`, true},
		{`module == "m2"`, false},
		{`hasTag("@wip")`, true},
		{`hasTag("@flaky")`, false},
		{`tag("@owner") == "core"`, true},
		{`len(tags) == 2`, true},
		{`name startsWith "m1." && !hasTag("@flaky")`, true},
		{`"@wip" in tags`, true},
	}
	for _, tt := range tests {
		e, err := CompileExpr(tt.src)
		if err != nil {
			t.Fatalf("CompileExpr(%q): %v", tt.src, err)
		}
		got, err := e.Match(tc)
		if err != nil {
			t.Fatalf("Match(%q): %v", tt.src, err)
		}
		if got != tt.want {
			t.Errorf("%s = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompileExpr_Errors(t *testing.T) {
	for _, src := range []string{`name`, `len(tags)`, `unknownVar == 1`, `name ==`} {
		if _, err := CompileExpr(src); err == nil {
			t.Errorf("CompileExpr(%q) should fail", src)
		}
	}
}

func TestFilter(t *testing.T) {
	tests := []suite.Test{
		suite.NewTest("m1.a", "m1", "@smoke"),
		suite.NewTest("m1.b", "m1"),
		suite.NewTest("m2.c", "m2", "@smoke"),
	}
	smoke, _ := NewBasket("smoke", "-R", "@smoke")
	m2, err := CompileExpr(`module == "m2"`)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Filter(tests, &smoke)
	if err != nil {
		t.Fatal(err)
	}
	if names(got) != "m1.a,m2.c" {
		t.Errorf("smoke = %s", names(got))
	}

	got, _ = Filter(tests, &smoke, m2)
	if names(got) != "m2.c" {
		t.Errorf("smoke && m2 = %s", names(got))
	}

	got, _ = Filter(tests, Names{"m2.c", "m1.a"})
	if names(got) != "m1.a,m2.c" {
		t.Errorf("Names keeps suite order, got %s", names(got))
	}

	got, _ = Filter(tests)
	if len(got) != 3 {
		t.Errorf("no matchers should select everything, got %s", names(got))
	}
}

func names(tests []suite.Test) string {
	var s []string
	for _, t := range tests {
		s = append(s, t.Name())
	}
	return strings.Join(s, ",")
}

func TestQuery_Apply(t *testing.T) {
	s, err := suite.New("test",
		suite.NewTest("m1.a", "m1", "@smoke"),
		suite.NewTest("m1.b", "m1", "@wip"),
		suite.NewTest("m2.c", "m2", "@smoke"),
	)
	if err != nil {
		t.Fatal(err)
	}
	smoke, err := NewBasket("smoke", "-R", "@smoke")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"everything", Query{}, "m1.a m1.b m2.c"},
		{"names in suite order", Query{Names: []string{"m2.c", "m1.a"}}, "m1.a m2.c"},
		{"basket", Query{Basket: &smoke}, "m1.a m2.c"},
		{"basket and where", Query{Basket: &smoke, Where: `module == "m2"`}, "m2.c"},
		{"empty basket", Query{Basket: &Basket{}}, "m1.a m1.b m2.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.Apply(s)
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, g := range got {
				names = append(names, g.Name())
			}
			if strings.Join(names, " ") != tt.want {
				t.Errorf("got %v, want %s", names, tt.want)
			}
		})
	}

	if _, err := (Query{Names: []string{"m9.x"}}).Apply(s); err == nil {
		t.Error("expected error for a name not in the suite")
	}
	if _, err := (Query{Where: "name +"}).Apply(s); err == nil {
		t.Error("expected error for a bad expression")
	}
}
