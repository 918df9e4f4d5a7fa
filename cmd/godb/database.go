package main

import (
	"path/filepath"

	"github.com/CreatureOX/godb/godb"
)

// database bundles the engine collaborators a CLI session needs: the
// buffer pool every page flows through (with the WAL those files' commits
// are forced to attached to it) and the catalog mapping table names to
// their backing heap files.
type database struct {
	bufPool *godb.BufferPool
	catalog *godb.Catalog
}

func openDatabase(dir, catalogFile, logFileName string, pages int) (*database, error) {
	bp, err := godb.NewBufferPool(pages)
	if err != nil {
		return nil, err
	}

	lf, err := godb.NewLogFile(filepath.Join(dir, logFileName))
	if err != nil {
		return nil, err
	}
	bp.SetLogFile(lf)

	cat := godb.NewCatalog(catalogFile, bp, dir)
	if err := cat.ParseCatalogFile(); err != nil {
		return nil, err
	}

	return &database{bufPool: bp, catalog: cat}, nil
}
