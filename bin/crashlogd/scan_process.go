package main

import (
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/inconshreveable/log15"
	"github.com/samber/lo"
)

// scanProcess brings the index in line with the report directory: new report
// files are indexed, files that grew since they were indexed are indexed
// again, and the documents of deleted files are removed.
type scanProcess struct {
	index Index
	log   log15.Logger
	store store.Store
	// seen holds the size of each file when it was last indexed. A report
	// saved in the same second and mode as another is appended to its file,
	// which only shows as a change of size.
	seen map[string]datasize.ByteSize

	err     error
	files   []string
	indexed []string
	added   []indexedReport
	updated []indexedReport
	removed []string
}

type indexedReport struct {
	summary crashlog.Summary
	size    datasize.ByteSize
}

func (p *scanProcess) listFiles() {
	if p.err != nil {
		return
	}

	p.log.Debug("listing report files")
	files, err := p.store.List()
	if err != nil {
		p.err = wrap(err, `listing report files`)
		return
	}
	p.files = files
}

func (p *scanProcess) listIndexed() {
	if p.err != nil {
		return
	}

	p.log.Debug("listing indexed reports")
	indexed, err := p.index.Names()
	if err != nil {
		p.err = wrap(err, `listing indexed reports`)
		return
	}
	p.indexed = indexed
}

// indexChanged indexes the files that aren't already, and those whose size
// changed since they were indexed. A file that can't be read is skipped and
// will be tried again on the next scan.
func (p *scanProcess) indexChanged() {
	if p.err != nil {
		return
	}
	if p.seen == nil {
		p.seen = make(map[string]datasize.ByteSize)
	}

	for _, name := range p.files {
		isNew := !lo.Contains(p.indexed, name)
		if !isNew && !p.changed(name) {
			continue
		}

		log := p.log.New("name", name)

		r, err := p.read(name)
		if err != nil {
			log.Warn("reading report", "err", err)
			continue
		}

		err = p.index.Index(r.summary)
		if err != nil {
			p.err = wrap(err, `indexing %s`, name)
			return
		}

		log.Debug("indexed report", "size", r.size.HumanReadable())
		p.seen[name] = r.size
		if isNew {
			p.added = append(p.added, r)
		} else {
			p.updated = append(p.updated, r)
		}
	}
}

// changed returns true if the size of the file differs from its size when it
// was last indexed, or if that size isn't known.
func (p *scanProcess) changed(name string) bool {
	size, ok := p.seen[name]
	if !ok {
		return true
	}

	info, err := os.Stat(p.store.Path(name))
	if err != nil {
		return false
	}
	return datasize.ByteSize(info.Size()) != size
}

func (p *scanProcess) read(name string) (indexedReport, error) {
	f, err := p.store.Open(name)
	if err != nil {
		return indexedReport{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return indexedReport{}, wrap(err, `reading file info`)
	}

	rep, err := report.Parse(f)
	if err != nil {
		return indexedReport{}, err
	}

	return indexedReport{
		summary: report.Summarize(name, rep),
		size:    datasize.ByteSize(info.Size()),
	}, nil
}

// cleanRemoved deletes the documents of the reports whose file is gone.
func (p *scanProcess) cleanRemoved() {
	if p.err != nil {
		return
	}

	for _, name := range lo.Without(p.indexed, p.files...) {
		p.log.Debug("removing indexed report", "name", name)
		err := p.index.Delete(name)
		if err != nil {
			p.err = wrap(err, `removing indexed report %s`, name)
			return
		}
		delete(p.seen, name)
		p.removed = append(p.removed, name)
	}
}
