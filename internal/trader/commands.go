package trader

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"marlin/internal/logger"
	"marlin/internal/types"
)

// ErrStopRequested signals an operator-initiated shutdown.
var ErrStopRequested = errors.New("stop requested")

// RunCommands reads operator commands line by line until the context is
// cancelled or the stream ends:
//
//	status        log open positions and the daily breaker state
//	close SYMBOL  market-close one position
//	stop          shut the whole process down
func (l *Loop) RunCommands(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := l.handleCommand(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) handleCommand(ctx context.Context, line string) error {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "status":
		l.logStatus()
	case "close":
		if len(fields) < 2 {
			logger.Warnf("usage: close SYMBOL")
			return nil
		}
		symbol := strings.ToUpper(fields[1])
		trade, err := l.machine.Close(ctx, symbol, types.ExitManual)
		switch {
		case err != nil:
			logger.Errorf("manual close %s failed: %v", symbol, err)
		case trade == nil:
			logger.Warnf("no open position for %s", symbol)
		}
	case "stop":
		logger.Infof("stop requested by operator")
		return ErrStopRequested
	default:
		logger.Warnf("unknown command %q (status | close SYMBOL | stop)", fields[0])
	}
	return nil
}

func (l *Loop) logStatus() {
	book := l.machine.Book().Snapshot()
	cum, paused := l.daily.Stats(time.Now())
	logger.Infof("status: %d open position(s), daily pnl %.4f, breaker paused=%v", len(book), cum, paused)
	for _, p := range book {
		logger.Infof("  %s %s qty=%.8f entry=%.4f sl=%.4f tp=%.4f extreme=%.4f",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.StopPrice, p.TakeProfit, p.ExtremePrice)
	}
}
