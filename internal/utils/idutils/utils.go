package idutils

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

var (
	sfNodeOnce sync.Once
	sfNode     *snowflake.Node
	sfNodeErr  error
)

// GenerateSnowflakeId 生成一个 snowflake ID。同一进程共享一个节点，
// 生成的 ID 按时间单调递增，可直接用作 FIFO 队列的排序键。
func GenerateSnowflakeId() (string, error) {
	sfNodeOnce.Do(func() {
		sfNode, sfNodeErr = snowflake.NewNode(1)
	})
	if sfNodeErr != nil {
		return "", errors.Wrap(sfNodeErr, "无法生成 ID")
	}

	return sfNode.Generate().String(), nil
}
