package services

import (
	"sync"

	"serverguard.keepalive/internal/core/domain"
)

const PreviewMessage = "Local preview updated (place a file with the same name in the public directory)"

// AssetRegistry is one session's view of the fixed, ordered set of hosted assets.
// Only the displayed URL can change, and only inside the session that changed it;
// nothing is uploaded, stored or shown to other sessions. See Guard.NewSession.
type AssetRegistry struct {
	mu     sync.RWMutex
	assets []domain.HostedAsset
	logs   *LogBuffer
}

func NewAssetRegistry(assets []domain.HostedAsset, logs *LogBuffer) *AssetRegistry {
	own := make([]domain.HostedAsset, len(assets))
	copy(own, assets)
	return &AssetRegistry{assets: own, logs: logs}
}

// List returns the assets in definition order.
func (r *AssetRegistry) List() []domain.HostedAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.HostedAsset, len(r.assets))
	copy(out, r.assets)
	return out
}

func (r *AssetRegistry) Get(id string) (domain.HostedAsset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.assets {
		if a.ID == id {
			return a, true
		}
	}
	return domain.HostedAsset{}, false
}

// UpdateLocalPreview swaps the displayed URL of asset id and logs a reminder that the
// real file still has to be placed on the server. Unknown ids are ignored.
func (r *AssetRegistry) UpdateLocalPreview(id, newURL string) bool {
	r.mu.Lock()
	found := false
	for i := range r.assets {
		if r.assets[i].ID == id {
			r.assets[i].URL = newURL
			found = true
			break
		}
	}
	r.mu.Unlock()

	if found {
		r.logs.Warn(PreviewMessage)
	}
	return found
}
