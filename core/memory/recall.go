package memory

import (
	"context"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
)

const defaultRecallLimit = 5

type factDocument struct {
	Fact string `json:"fact"`
}

// factIndex is an in-memory full text index over key facts. Index failures
// are logged and only degrade recall.
type factIndex struct {
	index  bleve.Index
	logger *slog.Logger
}

func newFactIndex(logger *slog.Logger) *factIndex {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		logger.Warn("fact recall disabled", "error", err)
		return &factIndex{logger: logger}
	}
	return &factIndex{index: idx, logger: logger}
}

func (f *factIndex) add(kf KeyFact) {
	if f == nil || f.index == nil {
		return
	}
	if err := f.index.Index(kf.ID, factDocument{Fact: kf.Fact}); err != nil {
		f.logger.Warn("index key fact", "id", kf.ID, "error", err)
	}
}

func (f *factIndex) remove(id string) {
	if f == nil || f.index == nil {
		return
	}
	if err := f.index.Delete(id); err != nil {
		f.logger.Warn("unindex key fact", "id", id, "error", err)
	}
}

func (f *factIndex) search(ctx context.Context, q string, limit int) ([]string, error) {
	if f == nil || f.index == nil || q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), limit, 0, false)
	res, err := f.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (f *factIndex) close() {
	if f == nil || f.index == nil {
		return
	}
	_ = f.index.Close()
}
