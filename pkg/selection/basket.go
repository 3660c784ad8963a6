// Package selection decides which tests of a suite to run.
//
// Two kinds of filters exist. Baskets filter by regular expressions over
// test names and tags; they can also be defined in the environment and
// combined. Expressions are expr-lang boolean expressions evaluated against
// each test.
package selection

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/pflag"

	"github.com/ormasoftchile/nttrun/pkg/suite"
)

// EnvBaskets names the environment variable holding the colon separated
// list of active baskets. A basket <name> is defined by the variable
// EnvBaskets_<name>, e.g.
//
//	NTT_LIST_BASKETS=stable:ipv6
//	NTT_LIST_BASKETS_stable="-X @wip|@flaky"
//	NTT_LIST_BASKETS_ipv6="-R @ipv6"
const EnvBaskets = "NTT_LIST_BASKETS"

// Flags returns the basket filter flags:
//
//	-r, --regex         test names must match every expression
//	-x, --exclude       exclude tests whose name matches every expression
//	-R, --tags-regex    tags must match every expression
//	-X, --tags-exclude  exclude tests whose tags match every expression
//
// A tag expression of the form "key: value" matches the key and value of a
// tag separately; tags are split at the first colon or space.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("basket", pflag.ContinueOnError)
	fs.StringSliceP("regex", "r", nil, "run tests whose name matches regular expression")
	fs.StringSliceP("exclude", "x", nil, "exclude tests whose name matches regular expression")
	fs.StringSliceP("tags-regex", "R", nil, "run tests with tags matching regular expression")
	fs.StringSliceP("tags-exclude", "X", nil, "exclude tests with tags matching regular expression")
	return fs
}

// A Basket filters tests by name and tags. All explicit filters of a
// basket must match (AND). If the basket has sub-baskets, at least one of
// them must match as well (OR). Baskets are built with NewBasket; the
// exported filter fields are informational.
type Basket struct {
	Name        string
	NameRegex   []string
	NameExclude []string
	TagsRegex   []string
	TagsExclude []string
	Baskets     []Basket

	nameRe, nameEx []*regexp.Regexp
	tagsRe, tagsEx []tagPattern
}

// NewBasket parses basket flags from args.
func NewBasket(name string, args ...string) (Basket, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return Basket{}, fmt.Errorf("basket %q: %w", name, err)
	}
	if fs.NArg() > 0 {
		return Basket{}, fmt.Errorf("basket %q: unexpected argument %q", name, fs.Arg(0))
	}
	return NewBasketWithFlags(name, fs)
}

// NewBasketWithFlags builds a basket from a flag set that includes Flags.
func NewBasketWithFlags(name string, fs *pflag.FlagSet) (Basket, error) {
	b := Basket{Name: name}
	var err error
	if b.NameRegex, err = fs.GetStringSlice("regex"); err != nil {
		return b, err
	}
	if b.NameExclude, err = fs.GetStringSlice("exclude"); err != nil {
		return b, err
	}
	if b.TagsRegex, err = fs.GetStringSlice("tags-regex"); err != nil {
		return b, err
	}
	if b.TagsExclude, err = fs.GetStringSlice("tags-exclude"); err != nil {
		return b, err
	}
	if err := b.compile(); err != nil {
		return Basket{}, fmt.Errorf("basket %q: %w", name, err)
	}
	return b, nil
}

func (b *Basket) compile() error {
	var err error
	if b.nameRe, err = compileAll(b.NameRegex); err != nil {
		return err
	}
	if b.nameEx, err = compileAll(b.NameExclude); err != nil {
		return err
	}
	if b.tagsRe, err = compileTags(b.TagsRegex); err != nil {
		return err
	}
	if b.tagsEx, err = compileTags(b.TagsExclude); err != nil {
		return err
	}
	return nil
}

// LoadBaskets adds the baskets listed in the variable key as sub-baskets.
// lookup resolves variables, usually os.LookupEnv or a configuration
// fallback. A listed basket without a definition selects tests tagged
// @<name>.
func (b *Basket) LoadBaskets(lookup func(string) (string, bool), key string) error {
	list, _ := lookup(key)
	for _, name := range strings.Split(list, ":") {
		if name == "" {
			continue
		}
		def, _ := lookup(key + "_" + name)
		args := strings.Fields(def)
		if len(args) == 0 {
			args = []string{"-R", "@" + name}
		}
		sb, err := NewBasket(name, args...)
		if err != nil {
			return err
		}
		b.Baskets = append(b.Baskets, sb)
	}
	return nil
}

// IsEmpty reports whether the basket has no filters and matches everything.
func (b *Basket) IsEmpty() bool {
	return len(b.nameRe)+len(b.nameEx)+len(b.tagsRe)+len(b.tagsEx)+len(b.Baskets) == 0
}

// Match implements Matcher.
func (b *Basket) Match(t suite.Test) (bool, error) {
	return b.MatchTags(t.Name(), t.Tags()), nil
}

// MatchTags reports whether a test with the given name and tags passes
// the basket and, if any, one of its sub-baskets.
func (b *Basket) MatchTags(name string, tags []string) bool {
	split := splitTags(tags)
	if !b.match(name, split) {
		return false
	}
	return b.matchSub(name, split)
}

func (b *Basket) matchSub(name string, tags []tag) bool {
	if len(b.Baskets) == 0 {
		return true
	}
	for i := range b.Baskets {
		sb := &b.Baskets[i]
		if sb.match(name, tags) && sb.matchSub(name, tags) {
			return true
		}
	}
	return false
}

func (b *Basket) match(name string, tags []tag) bool {
	if !matchAll(b.nameRe, name) {
		return false
	}
	if len(b.nameEx) > 0 && matchAll(b.nameEx, name) {
		return false
	}
	if len(b.tagsRe) > 0 && !matchAllTags(b.tagsRe, tags) {
		return false
	}
	if len(b.tagsEx) > 0 && matchAllTags(b.tagsEx, tags) {
		return false
	}
	return true
}

func matchAll(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if !re.MatchString(s) {
			return false
		}
	}
	return true
}

// matchAllTags reports whether every pattern matches at least one tag.
func matchAllTags(patterns []tagPattern, tags []tag) bool {
next:
	for _, p := range patterns {
		for _, t := range tags {
			if !p.key.MatchString(t.key) {
				continue
			}
			if p.value != nil && !p.value.MatchString(t.value) {
				continue
			}
			continue next
		}
		return false
	}
	return true
}

type tag struct{ key, value string }

// splitTags splits "@key value" and "@key: value" into key and value.
func splitTags(tags []string) []tag {
	out := make([]tag, len(tags))
	for i, s := range tags {
		s = strings.TrimSpace(s)
		j := strings.IndexFunc(s, func(r rune) bool { return r == ':' || unicode.IsSpace(r) })
		if j < 0 {
			out[i] = tag{key: s}
			continue
		}
		value := strings.TrimLeft(s[j:], ": \t")
		out[i] = tag{key: s[:j], value: strings.TrimSpace(value)}
	}
	return out
}

type tagPattern struct {
	key   *regexp.Regexp
	value *regexp.Regexp // nil matches any value
}

func compileTags(exprs []string) ([]tagPattern, error) {
	var out []tagPattern
	for _, s := range exprs {
		f := strings.SplitN(s, ":", 2)
		var p tagPattern
		var err error
		if p.key, err = regexp.Compile(strings.TrimSpace(f[0])); err != nil {
			return nil, fmt.Errorf("tag expression %q: %w", s, err)
		}
		if len(f) > 1 {
			if p.value, err = regexp.Compile(strings.TrimSpace(f[1])); err != nil {
				return nil, fmt.Errorf("tag expression %q: %w", s, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, s := range exprs {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("name expression %q: %w", s, err)
		}
		out = append(out, re)
	}
	return out, nil
}
