// Package uploadqueue is the persistent retry queue behind the storage
// router. Entries are kept in a Badger database so that queued uploads
// survive process restarts; keys are snowflake IDs, which sort by creation
// time, so prefix iteration yields FIFO order.
package uploadqueue

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/utils/idutils"
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

var keyPrefix = []byte("upload/")

// Entry 表示一个待重试的上传任务。
type Entry struct {
	ID           string            `json:"id"`
	Payload      []byte            `json:"payload"`
	Filename     string            `json:"filename"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	EnqueuedAt   time.Time         `json:"enqueuedAt"`
	AttemptCount int               `json:"attemptCount"`
}

// Queue 是基于 Badger 的持久化 FIFO 队列。入队与处理被同一把互斥锁串行化，
// 保证任意时刻最多只有一个 drainer 在操作队列。
type Queue struct {
	db *badger.DB
	mu sync.Mutex
}

// Open 打开（或创建）path 下的队列数据库。
func Open(path string) (*Queue, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "无法打开重试队列数据库 %v", path)
	}

	return &Queue{db: db}, nil
}

// Close 关闭底层数据库。
func (q *Queue) Close() error {
	return q.db.Close()
}

func entryKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), []byte(id)...)
}

// Enqueue 追加一个任务，返回其在队列中的位置（1 起）。
func (q *Queue) Enqueue(payload []byte, filename string, metadata map[string]string) (position int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, err := idutils.GenerateSnowflakeId()
	if err != nil {
		return 0, err
	}

	entry := Entry{
		ID:         id,
		Payload:    payload,
		Filename:   filename,
		Metadata:   metadata,
		EnqueuedAt: time.Now(),
	}

	entryBytes, err := json.Marshal(&entry)
	if err != nil {
		return 0, errors.Wrap(err, "无法序列化队列任务")
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(id), entryBytes)
	})
	if err != nil {
		return 0, errors.Wrap(err, "无法写入重试队列")
	}

	depth, err := q.depthLocked()
	if err != nil {
		return 0, err
	}

	return depth, nil
}

// Peek 返回队首任务；队列为空时返回 (nil, nil)。
func (q *Queue) Peek() (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var head *Entry
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(keyPrefix)
		if !it.ValidForPrefix(keyPrefix) {
			return nil
		}

		return it.Item().Value(func(val []byte) error {
			var entry Entry
			if err := json.Unmarshal(val, &entry); err != nil {
				return errors.Wrap(err, "无法解析队列任务")
			}
			head = &entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return head, nil
}

// Remove 删除指定任务。任务已不存在时视为成功，保证“恰好移除一次”的语义。
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(id))
	})
	if err != nil {
		return errors.Wrapf(err, "无法从重试队列中移除任务 %v", id)
	}

	return nil
}

// IncrementAttempt 累加任务的失败次数并返回累加后的值。
func (q *Queue) IncrementAttempt(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	attempts := 0
	err := q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if err != nil {
			return errors.Wrapf(err, "队列中不存在任务 %v", id)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return errors.Wrap(err, "无法解析队列任务")
		}

		entry.AttemptCount++
		attempts = entry.AttemptCount

		entryBytes, err := json.Marshal(&entry)
		if err != nil {
			return errors.Wrap(err, "无法序列化队列任务")
		}

		return txn.Set(entryKey(id), entryBytes)
	})
	if err != nil {
		return 0, err
	}

	return attempts, nil
}

func (q *Queue) depthLocked() (int, error) {
	depth := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			depth++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "无法统计队列深度")
	}

	return depth, nil
}

// Depth 返回当前队列深度。
func (q *Queue) Depth() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.depthLocked()
}

// List 按 FIFO 顺序返回所有任务（不含负载字节，避免大对象拷贝）。
func (q *Queue) List() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ret []Entry
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return errors.Wrap(err, "无法解析队列任务")
				}
				entry.Payload = nil
				ret = append(ret, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ret, nil
}
