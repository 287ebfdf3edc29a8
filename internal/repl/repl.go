package repl

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/rtmath/Crom/internal/parser"
)

// Start runs a read-parse-report loop. Every line is parsed as a
// standalone program; diagnostics print immediately, otherwise the AST.
func Start() {
	fmt.Println("Crom REPL | type 'exit' to quit")
	in := bufio.NewScanner(os.Stdin)
	colored := isatty.IsTerminal(os.Stderr.Fd())

	for {
		fmt.Print(">>> ")
		if !in.Scan() {
			break
		}
		line := in.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		p := parser.New(line)
		root := p.BuildAST()

		if len(p.Errors) > 0 {
			for _, err := range p.Errors {
				if colored {
					fmt.Fprintf(os.Stderr, "\x1b[31m%v\x1b[0m\n", err)
				} else {
					fmt.Fprintf(os.Stderr, "%v\n", err)
				}
			}
			continue
		}

		parser.PrintAST(root)
	}
}
