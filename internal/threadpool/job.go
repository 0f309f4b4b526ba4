package threadpool

// Job はワーカーが一度だけ実行する作業単位
type Job func()
