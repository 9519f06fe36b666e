package main

import (
	"errors"
	"os"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"
	"github.com/elwinar/crashlog"
	structmapper "gopkg.in/anexia-it/go-structmapper.v1"
)

type Index interface {
	Find(name string) (crashlog.Summary, error)
	Names() ([]string, error)
	Index(crashlog.Summary) error
	Delete(name string) error
	Search(q, sort, order string, size, from int) ([]crashlog.Summary, uint64, error)
}

var (
	ErrNotFound = errors.New(`not found`)
)

// compile-time check that the BleveIndex actually implements the Index
// interface.
var _ Index = new(BleveIndex)

// namesPageSize is the number of documents fetched per request when listing
// the indexed reports.
const namesPageSize = 1000

type BleveIndex struct {
	// the index is the actual struct we are interfacing with.
	index bleve.Index

	// the mapper is used to convert between the Summary struct and the
	// map[string]interface{} used internally by the bleve index.
	mapper *structmapper.Mapper
}

// NewBleveIndex opens the index at path, creating it if needed. An empty
// path gives an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	var (
		index bleve.Index
		err   error
	)
	switch {
	case len(path) == 0:
		index, err = bleve.NewMemOnly(newMapping())
	default:
		_, err = os.Stat(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, wrap(err, `checking for index`)
		}

		if errors.Is(err, os.ErrNotExist) {
			index, err = bleve.New(path, newMapping())
		} else {
			index, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, wrap(err, `opening index`)
	}

	// Initialize the structmapper to use the JSON tag. This avoid having
	// to re-define every field with yet another tag.
	mapper, err := structmapper.NewMapper(structmapper.OptionTagName("json"))
	if err != nil {
		return nil, wrap(err, `initializing mapper`)
	}

	return &BleveIndex{
		index:  index,
		mapper: mapper,
	}, nil
}

// newMapping returns the mapping of the summaries. The fields used for
// sorting and exact matching aren't tokenized.
func newMapping() mapping.IndexMapping {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	m := bleve.NewIndexMapping()
	for _, field := range []string{"name", "mode", "date"} {
		m.DefaultMapping.AddFieldMappingsAt(field, exact)
	}
	return m
}

func (i *BleveIndex) Close() error {
	return i.index.Close()
}

func (i *BleveIndex) Find(name string) (s crashlog.Summary, err error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{name}))
	req.Fields = []string{"*"}

	res, err := i.index.Search(req)
	if err != nil {
		return s, wrap(err, `looking for report`)
	}

	if len(res.Hits) == 0 {
		return s, ErrNotFound
	}

	err = i.mapper.ToStruct(res.Hits[0].Fields, &s)
	if err != nil {
		return s, wrap(err, `mapping result to summary`)
	}
	s.Name = res.Hits[0].ID

	return s, nil
}

// Names returns the names of every indexed report.
func (i *BleveIndex) Names() ([]string, error) {
	var names []string
	for from := 0; ; from += namesPageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), namesPageSize, from, false)

		res, err := i.index.Search(req)
		if err != nil {
			return nil, wrap(err, `listing indexed reports`)
		}

		for _, d := range res.Hits {
			names = append(names, d.ID)
		}

		if len(res.Hits) < namesPageSize {
			return names, nil
		}
	}
}

func (i *BleveIndex) Index(s crashlog.Summary) error {
	m, err := i.mapper.ToMap(s)
	if err != nil {
		return wrap(err, `mapping summary`)
	}

	return i.index.Index(s.Name, m)
}

func (i *BleveIndex) Delete(name string) error {
	return i.index.Delete(name)
}

func (i *BleveIndex) Search(q, sort, order string, size, from int) (summaries []crashlog.Summary, total uint64, err error) {
	if order == "desc" {
		sort = "-" + sort
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), size, from, false)
	req.Fields = []string{"*"}
	req.SortBy(strings.Split(sort, ","))

	res, err := i.index.Search(req)
	if err != nil {
		return nil, 0, wrap(err, `searching for reports`)
	}

	for _, d := range res.Hits {
		var s crashlog.Summary

		err := i.mapper.ToStruct(d.Fields, &s)
		if err != nil {
			return nil, 0, wrap(err, `mapping to summary`)
		}
		s.Name = d.ID

		summaries = append(summaries, s)
	}

	return summaries, res.Total, nil
}
