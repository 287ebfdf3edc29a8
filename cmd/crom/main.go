package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"
	pkgerrors "github.com/pkg/errors"

	"github.com/rtmath/Crom/internal/lexer"
	"github.com/rtmath/Crom/internal/parser"
	"github.com/rtmath/Crom/internal/repl"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "-v", "version":
		fmt.Printf("crom %s\n", version)
		return
	case "repl":
		repl.Start()
		return
	case "check":
		requireFile(args, "check")
		checkFile(args[1], true)
		return
	case "tokens":
		requireFile(args, "tokens")
		dumpTokens(args[1])
		return
	case "ast":
		requireFile(args, "ast")
		dumpAST(args[1])
		return
	}

	checkFile(args[0], false)
}

func showUsage() {
	fmt.Println("Crom compiler front end")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  crom <file>          Parse a source file, report diagnostics")
	fmt.Println("  crom check <file>    Same, with an explicit OK on success")
	fmt.Println("  crom tokens <file>   Dump the token stream")
	fmt.Println("  crom ast <file>      Dump the parsed syntax tree")
	fmt.Println("  crom repl            Interactive parse loop")
	fmt.Println("  crom version         Print the version")
}

func requireFile(args []string, command string) {
	if len(args) < 2 {
		log.Fatalf("Error: 'crom %s' needs a file argument", command)
	}
}

func readSource(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error: %v", pkgerrors.Wrapf(err, "could not read %s", path))
	}
	return string(data)
}

func parseFile(path string) (*parser.Node, *parser.Parser) {
	p := parser.NewWithFile(readSource(path), path)
	return p.BuildAST(), p
}

func checkFile(path string, verbose bool) {
	_, p := parseFile(path)

	if n := reportErrors(p.Errors); n > 0 {
		fmt.Fprintf(os.Stderr, "%s: %d error(s)\n", path, n)
		os.Exit(1)
	}
	if verbose {
		fmt.Printf("%s: OK\n", path)
	}
}

func dumpTokens(path string) {
	s := lexer.NewScannerWithFile(readSource(path), path)
	for {
		t := s.ScanToken()
		fmt.Printf("%4d %s\n", t.Line, t)
		if t.Type == lexer.TokenEOF || t.Type == lexer.TokenError {
			return
		}
	}
}

func dumpAST(path string) {
	root, p := parseFile(path)

	if n := reportErrors(p.Errors); n > 0 {
		os.Exit(1)
	}
	parser.PrintAST(root)
}

func reportErrors(errs []error) int {
	colored := isatty.IsTerminal(os.Stderr.Fd())
	for _, err := range errs {
		if colored {
			fmt.Fprintf(os.Stderr, "\x1b[31m%v\x1b[0m\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
	return len(errs)
}
