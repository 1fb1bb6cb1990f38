package bus

import "fmt"

// channelRecord pairs a channel's event stream with its deferral flag.
// On a Sink deferred means "buffer until stable"; on a Source it means
// "redeliver inside the scheduler scope".
type channelRecord struct {
	emitter  *Emitter
	deferred bool
}

// registry maps channel names to records. Keys are write-once.
type registry struct {
	records map[string]*channelRecord
}

func newRegistry() registry {
	return registry{records: make(map[string]*channelRecord)}
}

func (r registry) lookup(name string) (*channelRecord, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

func (r registry) insert(name string, rec *channelRecord) error {
	if _, ok := r.records[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateChannel, name)
	}
	r.records[name] = rec
	return nil
}

func (r registry) emitter(name string) (*Emitter, error) {
	rec, ok := r.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (did you forget to call InitChannel?)", ErrUnknownChannel, name)
	}
	return rec.emitter, nil
}
