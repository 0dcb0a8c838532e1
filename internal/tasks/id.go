package tasks

import (
	"slices"
	"strconv"
	"strings"
)

// ID is an opaque dependency token handed out by List.AddTask. A task
// depending on an ID starts only after every task the ID stands for has
// completed.
type ID struct {
	ids []int
}

// None is the empty dependency.
var None = ID{}

// And combines two dependencies.
func (id ID) And(other ID) ID {
	out := slices.Concat(id.ids, other.ids)
	slices.Sort(out)
	return ID{ids: slices.Compact(out)}
}

// Empty reports whether id carries no dependency.
func (id ID) Empty() bool { return len(id.ids) == 0 }

func (id ID) String() string {
	if id.Empty() {
		return "none"
	}
	parts := make([]string, len(id.ids))
	for i, v := range id.ids {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "&")
}
