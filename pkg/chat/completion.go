package chat

import (
	"strings"
	"unicode"

	"github.com/jmuk/sleek/pkg/design"
)

type completer interface {
	triggerChar(line []rune, pos int) int
	complete(prefix string) []string
}

type commandCompleter struct{}

func (cc *commandCompleter) triggerChar(line []rune, pos int) int {
	i := 0
	if len(line) == 0 {
		return -1
	}
	for ; i < pos; i++ {
		if line[i] == '/' {
			break
		} else if !unicode.IsSpace(line[i]) {
			return -1
		}
	}
	if i >= pos {
		return -1
	}
	result := i
	for i++; i < pos; i++ {
		if !unicode.IsGraphic(line[i]) || unicode.IsSpace(line[i]) {
			return -1
		}
	}
	return result
}

func (cc *commandCompleter) complete(prefix string) []string {
	// the prefix includes the / char.
	prefix = prefix[1:]
	var results []string
	for _, cmd := range knownCommands {
		if strings.HasPrefix(cmd.name, prefix) {
			results = append(results, cmd.name[len(prefix):])
		}
	}
	return results
}

// screenCompleter completes @ mentions with screen labels.
type screenCompleter struct {
	state func() *design.State
}

func (sc *screenCompleter) triggerChar(line []rune, pos int) int {
	for i := pos - 1; i >= 0; i-- {
		r := line[i]
		if r == '@' {
			if i == 0 || unicode.IsSpace(line[i-1]) {
				return i
			}
			return -1
		} else if !unicode.IsGraphic(r) {
			return -1
		}
	}
	return -1
}

func (sc *screenCompleter) complete(prefix string) []string {
	st := sc.state()
	if st == nil {
		return nil
	}
	prefix = strings.ToLower(prefix[1:])
	var results []string
	for _, s := range st.Screens() {
		if s.Label == design.LoadingLabel {
			continue
		}
		if strings.HasPrefix(strings.ToLower(s.Label), prefix) {
			results = append(results, s.Label[len(prefix):]+" ")
		}
	}
	return results
}

// combinedCompleter implements readline.AutoCompleter with the first
// completer whose trigger character precedes the cursor.
type combinedCompleter struct {
	comps []completer
}

func (c *combinedCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	for _, cc := range c.comps {
		start := cc.triggerChar(line, pos)
		if start < 0 || start > pos {
			continue
		}
		length = pos - start
		prefix := string(line[start:pos])
		for _, result := range cc.complete(prefix) {
			newLine = append(newLine, []rune(result))
		}
		return newLine, length
	}
	return nil, 0
}

func newCombinedCompleter(state func() *design.State) *combinedCompleter {
	return &combinedCompleter{
		comps: []completer{
			&commandCompleter{},
			&screenCompleter{state: state},
		},
	}
}
