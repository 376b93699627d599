package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// ErrSequenceConflict 表示追加记录时期望的前序号已被他人占用。
var ErrSequenceConflict = errors.New("ledger: sequence conflict")

// 单条记录的扫描缓冲上限。快照包含全部标的，一行可能较长。
const maxRecordBytes = 4 * 1024 * 1024

// Ledger 是单个组合的追加式仓位账本，底层为每行一条 JSON 记录的文件。
// 记录一经写入不再修改或删除；"当前状态" 恒等于 sequence_id 最大的
// 记录所携带的快照。Append 在文件排他锁内重新核对最大序号后才写入，
// 以此作为进程间并发的唯一防线（compare-and-append）。
type Ledger struct {
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	headSeq   int64
	headSnap  Snapshot
	headValid bool
}

// Open 打开（必要时创建目录）指定路径上的账本。
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger: 账本路径不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: 创建账本目录失败: %w", err)
		}
	}

	return &Ledger{
		path:   path,
		logger: logger,
	}, nil
}

// Path 返回账本文件路径。
func (l *Ledger) Path() string {
	return l.path
}

// Latest 返回当前快照与其序号。账本为空时返回空快照和 -1。
func (l *Ledger) Latest() (Snapshot, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.headValid {
		return l.headSnap.Clone(), l.headSeq, nil
	}

	snap, seq, err := l.scanHead()
	if err != nil {
		return nil, -1, err
	}

	l.headSnap = snap
	l.headSeq = seq
	l.headValid = true

	return snap.Clone(), seq, nil
}

// Append 以 compare-and-append 语义追加一条记录：仅当
// entry.SequenceID 恰为文件中当前最大序号加一时才会写入，
// 否则返回 ErrSequenceConflict。"扫描-核对-写入" 全程持有文件
// 排他锁，两个进程（或同一文件上的两个句柄）竞争同一序号时
// 恰好一方成功。写入本身为单次系统调用加 fsync，不存在半条
// 记录落盘的情况。
func (l *Ledger) Append(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger: 序列化记录失败: %w", err)
	}
	line := append(payload, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: 打开账本失败: %w", err)
	}
	defer f.Close()

	// 进程间互斥靠文件锁，进程内靠 l.mu；锁内重扫才能看到
	// 其它写入方刚推进的序号。
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("ledger: 锁定账本失败: %w", err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()

	_, current, err := l.scanHead()
	if err != nil {
		return err
	}

	if entry.SequenceID != current+1 {
		l.headValid = false
		return fmt.Errorf("%w: 期望 %d，当前最大为 %d", ErrSequenceConflict, entry.SequenceID, current)
	}

	if _, err := f.Write(line); err != nil {
		l.headValid = false
		return fmt.Errorf("ledger: 写入记录失败: %w", err)
	}
	if err := f.Sync(); err != nil {
		l.headValid = false
		return fmt.Errorf("ledger: 落盘失败: %w", err)
	}

	l.headSeq = entry.SequenceID
	l.headSnap = entry.Positions.Clone()
	l.headValid = true

	return nil
}

// Entries 返回账本中全部可解析的记录，供重放与报表使用。
// 顺序为物理顺序；调用方应以 SequenceID 为准重新排序。
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scan()
}

// Initialized 报告账本是否已有记录。
func (l *Ledger) Initialized() (bool, error) {
	_, seq, err := l.Latest()
	if err != nil {
		return false, err
	}
	return seq >= 0, nil
}

// scanHead 扫描全文件并返回序号最大的记录的快照与序号。
// 必须持有 l.mu。
func (l *Ledger) scanHead() (Snapshot, int64, error) {
	entries, err := l.scan()
	if err != nil {
		return nil, -1, err
	}

	var (
		headSeq  int64 = -1
		headSnap Snapshot
	)
	for _, e := range entries {
		if e.SequenceID > headSeq {
			headSeq = e.SequenceID
			headSnap = e.Positions
		}
	}

	if headSnap == nil {
		headSnap = Snapshot{}
	}

	return headSnap, headSeq, nil
}

// scan 读取文件中全部记录。无法解析的行（例如崩溃时的残缺尾行）
// 被跳过并记录警告，绝不让整次读取失败。必须持有 l.mu。
func (l *Ledger) scan() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: 打开账本失败: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var entries []Entry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			l.logger.Warn("跳过无法解析的账本行",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: 读取账本失败: %w", err)
	}

	return entries, nil
}
