package process

import (
	"strings"

	"github.com/alessio/shellescape"
)

// commandBuilder accumulates a command line for logging. Arguments are shell-quoted
// so the logged line can be pasted into a terminal to reproduce a failed launch.
type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
