// Package fallback serves questions from a bundled bank when the LLM is unavailable.
package fallback

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/exammgr/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var bankYAML []byte

// TopicGeneral is the pool used when no keyword matches the topic.
const TopicGeneral = "general"

// keywords lists the topic keywords in match order. "javascript" and "js" are
// tried before "java" so that a JavaScript topic does not land in the Java pool.
var keywords = []struct {
	match []string
	pool  string
}{
	{[]string{"html"}, "html"},
	{[]string{"css"}, "css"},
	{[]string{"javascript", "js"}, "javascript"},
	{[]string{"java"}, "java"},
	{[]string{"python"}, "python"},
}

// Bank holds the fallback pools.
type Bank struct {
	pools map[string][]model.QuestionDraft

	mu  sync.Mutex
	rng *rand.Rand
}

// Load parses a bank from YAML. A nil rng seeds one from the clock.
func Load(data []byte, rng *rand.Rand) (*Bank, error) {
	var pools map[string][]model.QuestionDraft
	if err := yaml.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(pools[TopicGeneral]) == 0 {
		return nil, fmt.Errorf("question bank has no %q pool", TopicGeneral)
	}
	for name, qs := range pools {
		for i, q := range qs {
			if !q.Complete() {
				return nil, fmt.Errorf("question bank: %s[%d] is incomplete", name, i)
			}
		}
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Bank{pools: pools, rng: rng}, nil
}

// Default returns the bundled bank.
func Default() (*Bank, error) {
	return Load(bankYAML, nil)
}

// Pool returns the pool name a topic maps to.
func Pool(topic string) string {
	t := strings.ToLower(topic)
	for _, k := range keywords {
		for _, m := range k.match {
			if strings.Contains(t, m) {
				return k.pool
			}
		}
	}
	return TopicGeneral
}

// Questions returns up to count questions for topic, sampled without replacement.
// The result is capped at the pool size.
func (b *Bank) Questions(topic string, count int) []model.QuestionDraft {
	pool := b.pools[Pool(topic)]
	if len(pool) == 0 {
		pool = b.pools[TopicGeneral]
	}
	if count <= 0 {
		return nil
	}
	if count > len(pool) {
		count = len(pool)
	}

	b.mu.Lock()
	idx := b.rng.Perm(len(pool))
	b.mu.Unlock()

	out := make([]model.QuestionDraft, count)
	for i := range out {
		out[i] = pool[idx[i]]
	}
	return out
}

// Size returns the number of questions in the named pool.
func (b *Bank) Size(pool string) int {
	return len(b.pools[pool])
}
