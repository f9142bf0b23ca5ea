package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 配置变更回调，err 非 nil 表示重载或监听失败（旧配置仍然有效）
type WatchCallback func(cfg Config, err error)

// Watcher 配置文件监听器
type Watcher struct {
	cfg      *koanfConfig
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	stop  chan struct{}
	once  sync.Once
}

// WatchOption 监听配置选项
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，默认 100ms
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch 创建监听器，需调用 Run 或 StartAsync 开始监听。
//
// 设计决策: 监听目录而非文件本身，原子替换（rename）后对文件的 watch 会失效。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok {
		return nil, errors.New("xconf: unsupported config type")
	}
	if kc.path == "" {
		return nil, ErrNotReloadable
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(kc.path)
	if err := fw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err), fw.Close())
	}

	w := &Watcher{
		cfg:      kc,
		watcher:  fw,
		callback: callback,
		debounce: 100 * time.Millisecond,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run 阻塞监听直到 ctx 取消或 Stop 被调用，返回时释放 fsnotify 资源。
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Stop() }()

	filename := filepath.Base(w.cfg.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, filename)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.callback != nil {
				w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

// StartAsync 在后台 goroutine 中运行 Run
func (w *Watcher) StartAsync() {
	go func() { _ = w.Run(context.Background()) }()
}

// Stop 停止监听，可重复调用
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stop:
			return
		default:
		}
		err := w.cfg.Reload()
		if w.callback != nil {
			w.callback(w.cfg, err)
		}
	})
}
