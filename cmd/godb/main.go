// Command godb is a minimal SQL REPL over the godb storage engine: enough to
// drive a single-table SELECT/INSERT/DELETE end to end, not a query planner.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/CreatureOX/godb/godb"
)

func main() {
	pages := flag.Int("pages", 100, "buffer pool capacity, in pages")
	dir := flag.String("dir", ".", "directory holding catalog.txt and table files")
	catalogFile := flag.String("catalog", "catalog.txt", "catalog file name, resolved under -dir")
	logFile := flag.String("log", "godb.log", "write-ahead log file name, resolved under -dir")
	flag.Parse()

	db, err := openDatabase(*dir, *catalogFile, *logFile, *pages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "godb: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("godb - a teaching-grade relational storage engine")
	fmt.Println("single-table SELECT / INSERT / DELETE only; end statements with ';'")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "godb> ",
		HistoryFile: "/tmp/godb_history.txt",
	})
	if err != nil {
		runBasic(db)
		return
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		prompt := "godb> "
		if buf.Len() > 0 {
			prompt = "   -> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(line)

		stmt := strings.TrimSpace(buf.String())
		if strings.HasSuffix(stmt, ";") {
			buf.Reset()
			runStatement(db, strings.TrimSuffix(stmt, ";"))
		}
	}
}

func runBasic(db *database) {
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(line)

		stmt := strings.TrimSpace(buf.String())
		if strings.HasSuffix(stmt, ";") {
			buf.Reset()
			runStatement(db, strings.TrimSuffix(stmt, ";"))
		}
	}
}

func runStatement(db *database, sql string) {
	tid := godb.NewTID()
	if err := db.bufPool.BeginTransaction(tid); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	op, err := db.lower(sql, tid)
	if err != nil {
		db.bufPool.AbortTransaction(tid)
		fmt.Printf("error: %v\n", err)
		return
	}

	iter, err := op.Iterator(tid)
	if err != nil {
		db.bufPool.AbortTransaction(tid)
		fmt.Printf("error: %v\n", err)
		return
	}

	desc := op.Descriptor()
	fmt.Print(desc.HeaderString(true))
	n := 0
	for {
		t, err := iter()
		if err != nil {
			db.bufPool.AbortTransaction(tid)
			fmt.Printf("error: %v\n", err)
			return
		}
		if t == nil {
			break
		}
		fmt.Print(t.PrettyPrintString(true))
		n++
	}
	db.bufPool.CommitTransaction(tid)
	fmt.Printf("(%d rows)\n", n)
}
