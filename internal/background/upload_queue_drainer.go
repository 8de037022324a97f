// Package background hosts long-running workers that run beside the HTTP
// server, currently the upload queue drainer that replays queued uploads
// against remote storage providers.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage/uploadqueue"
	log "github.com/sirupsen/logrus"
)

// UploadQueueDrainer 周期性地重放重试队列中的上传任务。任一时刻只有一个
// 工作单元在消费队列，避免重复补传同一任务。
type UploadQueueDrainer struct {
	Router *storage.Router
	// OnReplayed 在某个任务补传成功后被调用，供上层更新文档登记信息。
	OnReplayed  func(entry *uploadqueue.Entry, result *storage.UploadResult)
	Pause       time.Duration // 两轮排空之间的休眠时长。创建后不要修改。
	MaxAttempts int           // 任务被放弃前允许的失败次数。创建后不要修改。
	wg          sync.WaitGroup
	chanQuit    chan int
	isStarting  bool
	isStarted   bool
	isStopping  bool
}

// NewUploadQueueDrainer 创建一个补传器。
func NewUploadQueueDrainer(router *storage.Router, onReplayed func(entry *uploadqueue.Entry, result *storage.UploadResult)) *UploadQueueDrainer {
	return &UploadQueueDrainer{
		Router:      router,
		OnReplayed:  onReplayed,
		Pause:       30 * time.Second,
		MaxAttempts: 5,
		wg:          sync.WaitGroup{},
		chanQuit:    make(chan int),
		isStarting:  false,
		isStarted:   false,
		isStopping:  false,
	}
}

// Start starts the drainer worker. Queued entries that survived a previous
// run are picked up on the first round.
func (s *UploadQueueDrainer) Start() error {
	log.Infoln("正在启动上传补传器...")

	if s.isStarting {
		return fmt.Errorf("上传补传器正在启动")
	} else if s.isStarted {
		return fmt.Errorf("上传补传器已启动")
	}

	s.isStarting = true

	go s.createDrainerWorker()

	s.isStarting = false
	s.isStarted = true
	log.Infoln("上传补传器已启动。")

	return nil
}

func (s *UploadQueueDrainer) createDrainerWorker() {
	s.wg.Add(1)

	for {
		select {
		case <-s.chanQuit:
			s.wg.Done()
			return
		case <-time.After(s.Pause):
			s.drainAvailable()
		}
	}
}

// drainAvailable 连续排空队列，直到队列为空或遇到失败为止。失败后退出
// 本轮，等待下一个周期再试，避免对不可用的提供方打转。
func (s *UploadQueueDrainer) drainAvailable() {
	for {
		replayed, err := s.DrainOnce(context.Background())
		if err != nil {
			log.WithError(err).Info("补传任务失败，等待下一轮")
			return
		}
		if !replayed {
			return
		}
	}
}

// DrainOnce 尝试补传队首任务。返回值表示是否有任务被成功补传；
// 队列为空时返回 (false, nil)。
func (s *UploadQueueDrainer) DrainOnce(ctx context.Context) (bool, error) {
	head, err := s.Router.Queue().Peek()
	if err != nil {
		return false, err
	}
	if head == nil {
		return false, nil
	}

	result, err := s.Router.UploadRemote(ctx, head.Payload, head.Filename, head.Metadata)
	if err != nil {
		attempts, incErr := s.Router.Queue().IncrementAttempt(head.ID)
		if incErr != nil {
			return false, incErr
		}

		if attempts >= s.MaxAttempts {
			log.WithFields(log.Fields{
				"id":       head.ID,
				"filename": head.Filename,
				"attempts": attempts,
			}).Error("补传任务多次失败，放弃该任务")
			if removeErr := s.Router.Queue().Remove(head.ID); removeErr != nil {
				return false, removeErr
			}
			return false, nil
		}

		return false, err
	}

	if err := s.Router.Queue().Remove(head.ID); err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"id":       head.ID,
		"cid":      result.CID,
		"provider": result.Provider,
	}).Info("队列任务补传成功")

	if s.OnReplayed != nil {
		s.OnReplayed(head, result)
	}

	return true, nil
}

// Stop stops the drainer worker.
//
// Returns
//   a wait group that can be used to block the caller Go routine
func (s *UploadQueueDrainer) Stop() (*sync.WaitGroup, error) {
	if s.isStopping {
		return nil, fmt.Errorf("上传补传器正在停止")
	} else if !s.isStarted {
		return nil, fmt.Errorf("上传补传器已停止")
	}

	s.isStopping = true
	s.chanQuit <- 0
	s.isStarted = false
	s.isStopping = false

	return &s.wg, nil
}
