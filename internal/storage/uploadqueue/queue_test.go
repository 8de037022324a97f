package uploadqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueuePeekRemove(t *testing.T) {
	queue, err := Open(t.TempDir())
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	defer queue.Close()

	position, err := queue.Enqueue([]byte("first payload"), "first.bin", map[string]string{"hash": "0xabc"})
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, 1, position)

	position, err = queue.Enqueue([]byte("second payload"), "second.bin", nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, position)

	head, err := queue.Peek()
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, "first.bin", head.Filename)
	assert.Equal(t, []byte("first payload"), head.Payload)

	assert.NoError(t, queue.Remove(head.ID))

	head, err = queue.Peek()
	assert.NoError(t, err)
	assert.Equal(t, "second.bin", head.Filename)

	// 重复移除同一任务不报错（恰好移除一次的语义）
	assert.NoError(t, queue.Remove("gone"))
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	queue, err := Open(dir)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	_, err = queue.Enqueue([]byte("durable payload"), "durable.bin", nil)
	assert.NoError(t, err)
	assert.NoError(t, queue.Close())

	reopened, err := Open(dir)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	defer reopened.Close()

	depth, err := reopened.Depth()
	assert.NoError(t, err)
	assert.Equal(t, 1, depth)

	head, err := reopened.Peek()
	assert.NoError(t, err)
	assert.Equal(t, "durable.bin", head.Filename)
	assert.Equal(t, []byte("durable payload"), head.Payload)
}

func TestIncrementAttempt(t *testing.T) {
	queue, err := Open(t.TempDir())
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	defer queue.Close()

	_, err = queue.Enqueue([]byte("payload"), "file.bin", nil)
	assert.NoError(t, err)

	head, err := queue.Peek()
	assert.NoError(t, err)

	for expected := 1; expected <= 3; expected++ {
		attempts, err := queue.IncrementAttempt(head.ID)
		assert.NoError(t, err)
		assert.Equal(t, expected, attempts)
	}
}

func TestListOmitsPayloadBytes(t *testing.T) {
	queue, err := Open(t.TempDir())
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	defer queue.Close()

	_, err = queue.Enqueue([]byte("big payload"), "a.bin", nil)
	assert.NoError(t, err)
	_, err = queue.Enqueue([]byte("bigger payload"), "b.bin", nil)
	assert.NoError(t, err)

	entries, err := queue.List()
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "a.bin", entries[0].Filename)
	assert.Equal(t, "b.bin", entries[1].Filename)
	assert.Nil(t, entries[0].Payload)
}
