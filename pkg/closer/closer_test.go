package closer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCloser_DoneUnblocksAfterClose(t *testing.T) {
	c := NewCloser()
	require.False(t, c.Closed())

	done := make(chan struct{})
	go func() {
		<-c.Done()
		close(done)
	}()

	c.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done channel did not unblock after Close")
	}
	require.True(t, c.Closed())
}

func TestCloser_CloseIsIdempotent(t *testing.T) {
	c := NewCloser()
	require.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}
