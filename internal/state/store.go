package state

import (
	"sync"

	"safe-core/pkg/safetx"
)

// Snapshot 是一份完整的界面状态。
// 值语义，每次更新整体替换，订阅方拿到的永远是一致的快照。
// CurrentTx 按约定视为不可变: 追加签名产生新记录，不原地修改。
type Snapshot struct {
	ConnectedAddress string
	SafeAddress      string
	CurrentTx        *safetx.Transaction
	Status           string // 最近一次操作的结果文案
	ParseSeq         uint64 // 已应用的最新解析序号
}

// Store 是状态的唯一持有者 (单写者)。
// 所有修改通过 Update 串行进入，订阅方只读。
type Store struct {
	mu   sync.Mutex
	snap Snapshot
	subs map[int]chan Snapshot
	next int
}

func NewStore() *Store {
	return &Store{
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot 返回当前快照
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Update 用 fn 基于当前快照计算新快照并整体替换，然后广播。
// fn 不应该修改入参，只返回新值。
func (s *Store) Update(fn func(Snapshot) Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = fn(s.snap)
	snap := s.snap

	// 发送都是非阻塞的，持锁广播可以排除并发 cancel 关闭通道
	for _, ch := range s.subs {
		// 订阅方消费慢时丢弃中间状态，只保证最终能看到最新快照
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return snap
}

// Subscribe 注册一个观察者，返回快照通道和取消函数
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// SetConnectedAddress 记录连接的账户；断开时传空串清除
func (s *Store) SetConnectedAddress(addr string) Snapshot {
	return s.Update(func(snap Snapshot) Snapshot {
		snap.ConnectedAddress = addr
		if addr == "" {
			snap.Status = "wallet disconnected"
		}
		return snap
	})
}

// SetCurrentTransaction 整体替换当前交易记录
func (s *Store) SetCurrentTransaction(tx *safetx.Transaction, status string) Snapshot {
	return s.Update(func(snap Snapshot) Snapshot {
		snap.CurrentTx = tx
		snap.Status = status
		return snap
	})
}

// ApplyParseResult 应用一次后台解析结果。
// 序号早于已应用序号的结果直接忽略，乱序到达的旧应答不会覆盖新状态。
func (s *Store) ApplyParseResult(seq uint64, tx *safetx.Transaction, err error) Snapshot {
	return s.Update(func(snap Snapshot) Snapshot {
		if seq < snap.ParseSeq {
			return snap // stale
		}
		snap.ParseSeq = seq
		switch {
		case err != nil:
			snap.CurrentTx = nil
			snap.Status = err.Error()
		case tx == nil:
			snap.CurrentTx = nil
			snap.Status = ""
		default:
			snap.CurrentTx = tx
			snap.Status = "transaction loaded"
		}
		return snap
	})
}
