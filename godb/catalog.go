package godb

/* Catalog maps table names to their backing DBFile and schema. It is loaded
from a catalog file, one table per line, in the form:

	tableName (field1 int, field2 string, ...)

field types are "int" or "string" (case-insensitive). Each table's backing
heap file is named tableName+".dat" and created, if absent, under rootPath.
*/

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type tableEntry struct {
	name string
	file DBFile
	desc *TupleDesc
}

type Catalog struct {
	catalogFile string
	rootPath    string
	bufPool     *BufferPool

	tableMap map[string]*tableEntry
}

// NewCatalog constructs a Catalog that will load from catalogFile (resolved
// relative to rootPath) when ParseCatalogFile is called.
func NewCatalog(catalogFile string, bp *BufferPool, rootPath string) *Catalog {
	return &Catalog{
		catalogFile: catalogFile,
		rootPath:    rootPath,
		bufPool:     bp,
		tableMap:    make(map[string]*tableEntry),
	}
}

func (c *Catalog) tableNameToFile(tableName string) string {
	return filepath.Join(c.rootPath, tableName+".dat")
}

// ParseCatalogFile reads c.catalogFile and opens (creating if necessary) a
// HeapFile for each table it names. A missing catalog file is not an error:
// it describes an empty database.
func (c *Catalog) ParseCatalogFile() error {
	path := filepath.Join(c.rootPath, c.catalogFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := c.parseCatalogLine(line); err != nil {
			return newErr(ParseError, "catalog.txt line %d: %v", lineNo, err)
		}
	}
	return scanner.Err()
}

func (c *Catalog) parseCatalogLine(line string) error {
	open := strings.Index(line, "(")
	close := strings.LastIndex(line, ")")
	if open < 0 || close < open {
		return fmt.Errorf("expected \"name (field type, ...)\", got %q", line)
	}
	tableName := strings.TrimSpace(line[:open])
	if tableName == "" {
		return fmt.Errorf("missing table name in %q", line)
	}

	fieldDefs := strings.Split(line[open+1:close], ",")
	fields := make([]FieldType, 0, len(fieldDefs))
	for _, def := range fieldDefs {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		parts := strings.Fields(def)
		if len(parts) != 2 {
			return fmt.Errorf("expected \"name type\", got %q", def)
		}
		var ftype DBType
		switch strings.ToLower(parts[1]) {
		case "int", "integer":
			ftype = IntType
		case "string", "varchar":
			ftype = StringType
		default:
			return fmt.Errorf("unknown field type %q", parts[1])
		}
		fields = append(fields, FieldType{Fname: parts[0], TableQualifier: tableName, Ftype: ftype})
	}

	desc := &TupleDesc{Fields: fields}
	hf, err := NewHeapFile(c.tableNameToFile(tableName), desc, c.bufPool)
	if err != nil {
		return err
	}
	c.tableMap[tableName] = &tableEntry{name: tableName, file: hf, desc: desc}
	return nil
}

// GetTable returns the DBFile backing tableName, or an error if no such
// table is registered.
func (c *Catalog) GetTable(tableName string) (DBFile, error) {
	entry, ok := c.tableMap[tableName]
	if !ok {
		return nil, newErr(ParseError, "no such table %q", tableName)
	}
	return entry.file, nil
}

// AddTable registers a table backed by an already-constructed DBFile,
// without requiring a catalog.txt entry, for callers (such as tests) that
// build tables programmatically.
func (c *Catalog) AddTable(tableName string, file DBFile) {
	c.tableMap[tableName] = &tableEntry{name: tableName, file: file, desc: file.Descriptor()}
}

// TableNames returns the registered table names in no particular order.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tableMap))
	for name := range c.tableMap {
		names = append(names, name)
	}
	return names
}

// computeAllTableStats builds a TableStats for every registered table.
// Callers typically do this once at startup and cache the result for the
// life of the process.
func (c *Catalog) computeAllTableStats() (map[string]*TableStats, error) {
	stats := make(map[string]*TableStats, len(c.tableMap))
	for name, entry := range c.tableMap {
		s, err := ComputeTableStats(c.bufPool, entry.file)
		if err != nil {
			return nil, err
		}
		stats[name] = s
	}
	return stats, nil
}
