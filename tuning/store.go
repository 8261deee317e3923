package tuning

import (
	"fmt"

	"github.com/colorfulnotion/regcache/common"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/storage"
	"github.com/goccy/go-json"
)

var resultPrefix = []byte("tune/")

// ProgramHash identifies a program by the blake2b hash of its encoding.
func ProgramHash(p *program.Program) common.Hash {
	return common.Blake2Hash(p.Encode())
}

// ResultStore keeps sweep results under tune/<program hash>/<params hash>.
type ResultStore struct {
	ps *storage.PersistenceStore
}

func NewResultStore(ps *storage.PersistenceStore) *ResultStore {
	return &ResultStore{ps: ps}
}

func programPrefix(prog common.Hash) []byte {
	return append(append(append([]byte(nil), resultPrefix...), prog.Bytes()...), '/')
}

func resultKey(prog common.Hash, params regcache.EvictionParams) ([]byte, error) {
	pj, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return append(programPrefix(prog), common.Blake2HashParts(prog.Bytes(), pj).Bytes()...), nil
}

func (s *ResultStore) Save(prog common.Hash, results []Result) error {
	kvs := make([][2][]byte, 0, len(results))
	for _, r := range results {
		key, err := resultKey(prog, r.Params)
		if err != nil {
			return err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return err
		}
		kvs = append(kvs, [2][]byte{key, val})
	}
	return s.ps.PutBatch(kvs)
}

// Load returns the stored result for params, if any.
func (s *ResultStore) Load(prog common.Hash, params regcache.EvictionParams) (*Result, bool, error) {
	key, err := resultKey(prog, params)
	if err != nil {
		return nil, false, err
	}
	data, ok, err := s.ps.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("result %x: %w", key, err)
	}
	return &r, true, nil
}

// List returns every stored result for prog, ranked.
func (s *ResultStore) List(prog common.Hash) ([]Result, error) {
	kvs, err := s.ps.GetWithPrefix(programPrefix(prog))
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(kvs))
	for _, kv := range kvs {
		var r Result
		if err := json.Unmarshal(kv[1], &r); err != nil {
			return nil, fmt.Errorf("result %x: %w", kv[0], err)
		}
		out = append(out, r)
	}
	return Rank(out), nil
}
