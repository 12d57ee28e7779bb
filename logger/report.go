package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsFetch         int64
	errorsParse         int64
	warnsFetch          int64
	warnsParse          int64
	snapshotsFetched    int64
	itemsFetched        int64
	candidatesFound     int64
	candidatesAnnounced int64
	archiveWrites       int64
)

func recordWarn(component string) {
	if strings.Contains(component, "fetch") {
		atomic.AddInt64(&warnsFetch, 1)
	} else if strings.Contains(component, "parser") || strings.Contains(component, "snapshot") {
		atomic.AddInt64(&warnsParse, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "fetch") {
		atomic.AddInt64(&errorsFetch, 1)
	} else if strings.Contains(component, "parser") || strings.Contains(component, "snapshot") {
		atomic.AddInt64(&errorsParse, 1)
	}
}

// IncrementSnapshotFetched records one realm snapshot saved to disk.
func IncrementSnapshotFetched() {
	atomic.AddInt64(&snapshotsFetched, 1)
}

// IncrementItemFetched records one item metadata document fetched.
func IncrementItemFetched() {
	atomic.AddInt64(&itemsFetched, 1)
}

// AddCandidates records candidates found and announced for one run.
func AddCandidates(found, announced int) {
	atomic.AddInt64(&candidatesFound, int64(found))
	atomic.AddInt64(&candidatesAnnounced, int64(announced))
}

// IncrementArchiveWrite records one observation archive object written.
func IncrementArchiveWrite() {
	atomic.AddInt64(&archiveWrites, 1)
}

// StartReport begins periodic logging of process and host statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_fetch":         atomic.LoadInt64(&errorsFetch),
		"errors_parse":         atomic.LoadInt64(&errorsParse),
		"warns_fetch":          atomic.LoadInt64(&warnsFetch),
		"warns_parse":          atomic.LoadInt64(&warnsParse),
		"snapshots_fetched":    atomic.LoadInt64(&snapshotsFetched),
		"items_fetched":        atomic.LoadInt64(&itemsFetched),
		"candidates_found":     atomic.LoadInt64(&candidatesFound),
		"candidates_announced": atomic.LoadInt64(&candidatesAnnounced),
		"archive_writes":       atomic.LoadInt64(&archiveWrites),
		"goroutines":           runtime.NumGoroutine(),
		"cpu_percent":          cpuPct,
		"memory_mb":            int64(memStats.Used) / 1024 / 1024,
		"disk_mb":              int64(diskStats.Used) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("FetchErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsFetch)))},
		{MetricName: aws.String("ParseErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsParse)))},
		{MetricName: aws.String("SnapshotsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotsFetched)))},
		{MetricName: aws.String("ItemsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&itemsFetched)))},
		{MetricName: aws.String("CandidatesFound"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&candidatesFound)))},
		{MetricName: aws.String("CandidatesAnnounced"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&candidatesAnnounced)))},
		{MetricName: aws.String("ArchiveWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archiveWrites)))},
	}

	publishMetrics(ctx, data)
}
