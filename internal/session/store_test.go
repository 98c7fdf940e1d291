package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maneesh/mediadrop/internal/models"
)

func photo(id string) models.Attachment {
	return models.Attachment{Type: models.CategoryPhoto, FileID: id}
}

func TestBeginAndAppend(t *testing.T) {
	st := NewStore()

	s, replaced := st.Begin(1, "tok")
	assert.False(t, replaced)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, int64(1), s.Owner)

	assert.Equal(t, 1, s.Append(photo("a")))
	assert.Equal(t, 2, s.Append(photo("b")))

	got, ok := st.Get(1)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []models.Attachment{photo("a"), photo("b")}, got.Attachments())
}

func TestBeginReplacesPreviousSession(t *testing.T) {
	st := NewStore()

	first, _ := st.Begin(1, "first")
	first.Append(photo("lost"))

	second, replaced := st.Begin(1, "second")
	assert.True(t, replaced)

	cur, ok := st.Get(1)
	require.True(t, ok)
	assert.Same(t, second, cur)
	assert.Equal(t, 0, cur.Len())
	assert.Equal(t, 1, st.Len())
}

func TestAttachmentsReturnsCopy(t *testing.T) {
	st := NewStore()
	s, _ := st.Begin(1, "tok")
	s.Append(photo("a"))

	snapshot := s.Attachments()
	snapshot[0].FileID = "mutated"

	assert.Equal(t, "a", s.Attachments()[0].FileID)
}

func TestRemoveOnlyCurrentSession(t *testing.T) {
	st := NewStore()
	old, _ := st.Begin(1, "old")
	fresh, _ := st.Begin(1, "fresh")

	assert.False(t, st.Remove(1, old))
	_, ok := st.Get(1)
	assert.True(t, ok)

	assert.True(t, st.Remove(1, fresh))
	_, ok = st.Get(1)
	assert.False(t, ok)
}

func TestRestoreOnlyWhenNoNewerSession(t *testing.T) {
	st := NewStore()
	s, _ := st.Begin(1, "tok")
	s.Append(photo("a"))
	require.True(t, st.Remove(1, s))

	assert.True(t, st.Restore(1, s))
	cur, ok := st.Get(1)
	require.True(t, ok)
	assert.Same(t, s, cur)
	assert.Equal(t, 1, cur.Len())

	require.True(t, st.Remove(1, s))
	newer, _ := st.Begin(1, "newer")
	assert.False(t, st.Restore(1, s))
	cur, _ = st.Get(1)
	assert.Same(t, newer, cur)
}

func TestAbandon(t *testing.T) {
	st := NewStore()
	assert.False(t, st.Abandon(7))

	st.Begin(7, "tok")
	assert.True(t, st.Abandon(7))
	_, ok := st.Get(7)
	assert.False(t, ok)
}

func TestOwnersAreIsolated(t *testing.T) {
	st := NewStore()
	a, _ := st.Begin(1, "a")
	b, _ := st.Begin(2, "b")
	a.Append(photo("x"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentAppendsSameOwner(t *testing.T) {
	st := NewStore()
	s, _ := st.Begin(1, "tok")

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cur, ok := st.Get(1)
			if ok {
				cur.Append(photo(fmt.Sprintf("p%d", i)))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, s.Len())
}

func TestConcurrentOwners(t *testing.T) {
	st := NewStore()

	var wg sync.WaitGroup
	for owner := int64(0); owner < 50; owner++ {
		wg.Add(1)
		go func(owner int64) {
			defer wg.Done()
			s, _ := st.Begin(owner, fmt.Sprint(owner))
			for i := 0; i < 10; i++ {
				s.Append(photo("p"))
			}
		}(owner)
	}
	wg.Wait()

	assert.Equal(t, 50, st.Len())
	for owner := int64(0); owner < 50; owner++ {
		s, ok := st.Get(owner)
		require.True(t, ok)
		assert.Equal(t, 10, s.Len())
	}
}
