package image

import "aeron-driver/internal/registry"

// Registry holds every live image indexed both by correlation id and by
// its (endpoint, stream, session) key.
type Registry struct {
	byCorrelation *registry.Table[int64, Image]
	byKey         map[Key]int64
}

func NewRegistry() *Registry {
	return &Registry{
		byCorrelation: registry.NewTable[int64, Image](),
		byKey:         make(map[Key]int64),
	}
}

func (r *Registry) Add(img *Image) {
	r.byCorrelation.Insert(img.CorrelationID, img)
	r.byKey[img.Key] = img.CorrelationID
}

func (r *Registry) ByCorrelation(corrID int64) (*Image, bool) {
	return r.byCorrelation.ByKey(corrID)
}

func (r *Registry) ByKey(key Key) (*Image, bool) {
	corrID, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return r.byCorrelation.ByKey(corrID)
}

func (r *Registry) Delete(corrID int64, key Key) {
	r.byCorrelation.Remove(corrID)
	delete(r.byKey, key)
}

func (r *Registry) Each(fn func(corrID int64, img *Image)) {
	r.byCorrelation.Each(fn)
}

// Len reports the number of live images.
func (r *Registry) Len() int {
	return r.byCorrelation.Len()
}
