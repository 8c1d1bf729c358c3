package cart

import (
	"encoding/json"
	"fmt"
	"strings"
)

const persistVersion = 0

// persistedCart is the stored document. Only the item list is persisted;
// the open flag and the totals are never written.
type persistedCart struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

type persistedState struct {
	Items []LineItem `json:"items"`
}

func encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(persistedCart{State: persistedState{Items: items}, Version: persistVersion})
}

// decode parses a stored document. Any document that could not have been
// produced by encode is rejected as a whole.
func decode(blob []byte) ([]LineItem, error) {
	var doc persistedCart
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("malformed cart document: %w", err)
	}
	if doc.Version != persistVersion {
		return nil, fmt.Errorf("unsupported cart document version %d", doc.Version)
	}
	seen := make(map[Key]struct{}, len(doc.State.Items))
	for _, item := range doc.State.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("line %d/%s has quantity %d", item.ProductID, item.Size, item.Quantity)
		}
		if strings.TrimSpace(item.Size) == "" {
			return nil, fmt.Errorf("line %d has no size", item.ProductID)
		}
		if _, dup := seen[item.Key()]; dup {
			return nil, fmt.Errorf("duplicate line %d/%s", item.ProductID, item.Size)
		}
		seen[item.Key()] = struct{}{}
	}
	return doc.State.Items, nil
}
