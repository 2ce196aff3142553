package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
	"safe-core/pkg/safetx"

	"go.uber.org/zap"
)

// ParseResult 是一次解析请求的应答。
// Seq 回传提交时拿到的序号，消费方据此丢弃过期应答。
type ParseResult struct {
	Seq uint64
	Tx  *safetx.Transaction // 合法时非 nil；空输入时 nil 且 Err 也为 nil
	Err error
}

type parseRequest struct {
	seq  uint64
	text string
}

// ParseWorker 在独立 Goroutine 中解析交易文本。
//
// 输入框每次变化都会触发一次解析，解析不能阻塞交互路径，
// 所以这里走 "提交请求 -> 异步收结果" 的消息传递模型，不共享内存。
//
// 每次 Submit 都会拿到一个单调递增的序号。应答乱序到达时，
// 序号不是最新的请求在 Worker 内部直接丢弃，保证 "最后输入生效"。
type ParseWorker struct {
	requests chan parseRequest
	results  chan ParseResult

	latest atomic.Uint64 // 最近一次提交的序号
	wg     sync.WaitGroup
}

// NewParseWorker 创建解析 Worker，缓冲大小决定了可积压的请求数
func NewParseWorker(buffer int) *ParseWorker {
	if buffer <= 0 {
		buffer = 16
	}
	return &ParseWorker{
		requests: make(chan parseRequest, buffer),
		results:  make(chan ParseResult, buffer),
	}
}

// Start 启动 Worker，ctx 取消时退出并关闭结果通道
func (w *ParseWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Submit 提交一段文本，返回本次请求的序号。
// 不会阻塞调用方: 队列满时丢弃一条积压的旧请求给新请求让位 ——
// 被丢掉的只能是已经过期的序号，最新的提交必然会被解析。
func (w *ParseWorker) Submit(text string) uint64 {
	seq := w.latest.Add(1)
	req := parseRequest{seq: seq, text: text}
	for {
		select {
		case w.requests <- req:
			return seq
		default:
		}

		select {
		case stale := <-w.requests:
			logger.Warn("解析队列已满，丢弃过期请求", zap.Uint64("seq", stale.seq))
		default:
		}
	}
}

// Results 返回应答通道。Worker 停止后通道会被关闭。
func (w *ParseWorker) Results() <-chan ParseResult {
	return w.results
}

// Stop 等待 Worker 退出 (需要先取消 Start 传入的 ctx)
func (w *ParseWorker) Stop() {
	w.wg.Wait()
}

func (w *ParseWorker) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.results)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("解析 Worker 收到退出信号")
			return
		case req := <-w.requests:
			// 已经有更新的提交，这条不用解析了
			if req.seq != w.latest.Load() {
				continue
			}

			tx, err := safetx.Parse(req.text)
			monitor.ParseResultsTotal.WithLabelValues(parseOutcome(tx, err)).Inc()

			// 解析期间可能又有新提交，过期结果不投递
			if req.seq != w.latest.Load() {
				continue
			}

			select {
			case w.results <- ParseResult{Seq: req.seq, Tx: tx, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func parseOutcome(tx *safetx.Transaction, err error) string {
	switch {
	case err == nil && tx == nil:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, safetx.ErrInvalidFormat):
		return "schema_error"
	default:
		return "parse_error"
	}
}
