package main

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestReadCtxReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	done := make(chan error, 1)
	go func() {
		_, err := readCtx(ctx, func() (string, error) {
			<-block
			return "", nil
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readCtx blocked after cancel")
	}
}

func TestReadCtxPassesThroughResult(t *testing.T) {
	got, err := readCtx(context.Background(), func() (string, error) {
		return readLine(bufio.NewReader(strings.NewReader("nyx@example.com\n")))
	})
	if err != nil || got != "nyx@example.com\n" {
		t.Errorf("readCtx() = %q, %v", got, err)
	}
}

func TestReadLine(t *testing.T) {
	if got, err := readLine(bufio.NewReader(strings.NewReader("last"))); err != nil || got != "last" {
		t.Errorf("unterminated line = %q, %v", got, err)
	}
	if _, err := readLine(bufio.NewReader(strings.NewReader(""))); err == nil {
		t.Error("empty input should fail")
	}
}
