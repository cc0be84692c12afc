package output

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
)

// TaskOutput is the display state of one transfer.
type TaskOutput struct {
	ID          int
	Name        string
	Status      Status
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Downloaded  int64
	Total       int64
}

type ErrorReport struct {
	Name  string
	Error error
	Time  time.Time
}

// Manager renders a live, redrawn view of concurrent transfers. When
// Stdout is not a terminal nothing is redrawn and only the final state and
// summary are printed.
type Manager struct {
	outputs     map[int]*TaskOutput
	mutex       sync.RWMutex
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	count       int
	displayWg   sync.WaitGroup
	live        bool
	started     bool
}

func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[int]*TaskOutput),
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		live:        isTerminal(),
	}
}

func (m *Manager) Register(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	now := time.Now()
	m.outputs[m.count] = &TaskOutput{
		ID:          m.count,
		Name:        name,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return m.count
}

func (m *Manager) with(id int, fn func(*TaskOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, ok := m.outputs[id]; ok {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.with(id, func(o *TaskOutput) { o.Message = message })
}

func (m *Manager) SetStatus(id int, status Status) {
	m.with(id, func(o *TaskOutput) { o.Status = status })
}

// Start resets the elapsed clock; call it when a queued transfer begins.
func (m *Manager) Start(id int, message string) {
	m.with(id, func(o *TaskOutput) {
		o.Status = StatusActive
		o.Message = message
		o.StartTime = time.Now()
	})
}

func (m *Manager) Status(id int) Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, ok := m.outputs[id]; ok {
		return info.Status
	}
	return ""
}

// Progress replaces the stream lines of id with a progress bar.
func (m *Manager) Progress(id int, downloaded, total int64) {
	m.with(id, func(o *TaskOutput) {
		o.Downloaded = downloaded
		o.Total = total
		bar := ProgressBar(downloaded, total, 30)
		speed := Speed(downloaded, time.Since(o.StartTime))
		o.StreamLines = []string{fmt.Sprintf("%s %s %s", bar, symBullet, debugStyle.Render(speed))}
	})
}

func (m *Manager) AddStreamLine(id int, text string) {
	m.with(id, func(o *TaskOutput) {
		o.StreamLines = append(o.StreamLines, wrapText(text, 6)...)
		if len(o.StreamLines) > m.maxStreams {
			o.StreamLines = o.StreamLines[len(o.StreamLines)-m.maxStreams:]
		}
	})
}

func (m *Manager) Complete(id int, message string) {
	m.with(id, func(o *TaskOutput) {
		o.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", o.Name)
		}
		o.Message = message
		o.Complete = true
		o.Status = StatusSuccess
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, ok := m.outputs[id]; ok {
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.StreamLines = nil
		info.LastUpdated = time.Now()
		info.Message = fmt.Sprintf("Failed %s", info.Name)
		m.errors = append(m.errors, ErrorReport{Name: info.Name, Error: err, Time: time.Now()})
	}
}

// Errors returns the reported errors in report order.
func (m *Manager) Errors() []ErrorReport {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]ErrorReport(nil), m.errors...)
}

func statusIndicator(status Status) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(symPass)
	case StatusError:
		return errorStyle.Render(symFail)
	case StatusWarning:
		return warningStyle.Render(symWarning)
	case StatusPending:
		return pendingStyle.Render(symPending)
	default:
		return infoStyle.Render(symBullet)
	}
}

func styleMessage(status Status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	case StatusWarning:
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sorted() (active, pending, completed []*TaskOutput) {
	all := make([]*TaskOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, o := range all {
		switch {
		case o.Complete:
			completed = append(completed, o)
		case o.Status == StatusPending:
			pending = append(pending, o)
		default:
			active = append(active, o)
		}
	}
	return active, pending, completed
}

// render builds the current view, limited to maxLines.
func (m *Manager) render(maxLines int) []string {
	var lines []string
	add := func(s string) bool {
		if len(lines) >= maxLines {
			return false
		}
		lines = append(lines, s)
		return true
	}
	entry := func(o *TaskOutput, elapsed time.Duration) {
		if !add(fmt.Sprintf("  %s %s %s", statusIndicator(o.Status), debugStyle.Render(elapsed.Round(time.Second).String()), styleMessage(o.Status, o.Message))) {
			return
		}
		for _, s := range o.StreamLines {
			if !add("      " + streamStyle.Render(s)) {
				return
			}
		}
	}

	active, pending, completed := m.sorted()
	needed := len(completed)
	for _, o := range append(active, pending...) {
		needed += 1 + len(o.StreamLines)
	}
	if needed > maxLines {
		keep := max(0, maxLines-(needed-len(completed)))
		completed = completed[len(completed)-min(keep, len(completed)):]
	}
	for _, o := range active {
		entry(o, time.Since(o.StartTime))
	}
	for _, o := range pending {
		add(fmt.Sprintf("  %s %s", statusIndicator(o.Status), pendingStyle.Render("Waiting...")))
	}
	if len(completed) > 10 {
		add(infoStyle.Render(fmt.Sprintf("  %d transfers completed with hidden status ...", len(completed)-8)))
		completed = completed[len(completed)-8:]
	}
	for _, o := range completed {
		entry(o, o.LastUpdated.Sub(o.StartTime))
	}
	return lines
}

func (m *Manager) redraw() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, height := terminalSize()
	if m.numLines > 0 {
		fmt.Fprintf(Stdout, "\033[%dA\033[J", m.numLines)
	}
	lines := m.render(max(height-3, 1))
	for _, l := range lines {
		fmt.Fprintln(Stdout, l)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.started = true
	if !m.live {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				return
			}
		}
	}()
}

// StopDisplay draws the final state and the summary.
func (m *Manager) StopDisplay() {
	if !m.started {
		return
	}
	m.started = false
	close(m.doneCh)
	m.displayWg.Wait()
	m.redraw()
	m.ShowSummary()
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	fmt.Fprintln(Stdout)
	fmt.Fprintln(Stdout, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(Stdout, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(Stdout)
		fmt.Fprintln(Stdout, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, e := range m.errors {
			fmt.Fprintf(Stdout, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))),
				errorStyle.Render(e.Name))
			fmt.Fprintf(Stdout, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", e.Error)))
		}
	}
	fmt.Fprintln(Stdout)
}
