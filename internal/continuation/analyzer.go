package continuation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// DefaultMaxIterations is the hard cap on continuation rounds per
// (session, task) pair.
const DefaultMaxIterations = 10

var (
	completionRe = regexp.MustCompile(`(?i)\b(task complete|completed successfully|all tests pass|done\.|finished|committed|pushed)\b`)
	waitingRe    = regexp.MustCompile(`(?i)(\?\s*$|\b(waiting for|shall i|would you like|do you want|please confirm|y/n|yes/no|proceed\?)\b)`)
	errorRe      = regexp.MustCompile(`(?i)\b(error|failed|failure|exception|panic|traceback|rate limit|permission denied|fatal)\b`)
)

// PaneCapturer is the backend slice the analyzer reads panes through.
type PaneCapturer interface {
	CapturePane(name string, lines int) (string, error)
}

// Analyzer classifies session output and tracks per-task iteration counts.
type Analyzer struct {
	term          PaneCapturer
	maxIterations int

	mu         sync.Mutex
	iterations map[string]int
}

func NewAnalyzer(term PaneCapturer, maxIterations int) *Analyzer {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Analyzer{
		term:          term,
		maxIterations: maxIterations,
		iterations:    make(map[string]int),
	}
}

func iterationKey(ev Event) string {
	task := ev.Metadata["taskId"]
	return fmt.Sprintf("%s\x00%s", ev.SessionName, task)
}

// ResetIterations clears the counter for a (session, task) pair, typically
// when a new task is assigned.
func (a *Analyzer) ResetIterations(sessionName, taskID string) {
	a.mu.Lock()
	delete(a.iterations, fmt.Sprintf("%s\x00%s", sessionName, taskID))
	a.mu.Unlock()
}

// Analyze classifies the session's current pane for one continuation event.
// Each call counts as one iteration for the event's (session, task) pair;
// past the cap the verdict is forced to MAX_ITERATIONS regardless of output.
func (a *Analyzer) Analyze(ctx context.Context, ev Event) Analysis {
	key := iterationKey(ev)
	a.mu.Lock()
	a.iterations[key]++
	iter := a.iterations[key]
	a.mu.Unlock()

	if iter > a.maxIterations {
		debug.LogKV("continuation", "iteration cap hit", "session", ev.SessionName, "iterations", iter)
		return Analysis{
			Conclusion: MaxIterations,
			Confidence: 1,
			Evidence:   []string{fmt.Sprintf("iteration %d exceeds cap %d", iter, a.maxIterations)},
			Action:     ActionNotifyOwner,
		}
	}

	if err := ctx.Err(); err != nil {
		return Analysis{Conclusion: Unknown, Action: ActionNoAction}
	}

	pane, err := a.term.CapturePane(ev.SessionName, 50)
	if err != nil {
		// A dead session with a pty_exit trigger is still classifiable.
		if ev.Trigger == TriggerPTYExit {
			return Analysis{
				Conclusion: Incomplete,
				Confidence: 0.5,
				Evidence:   []string{"session exited, no pane available"},
				Action:     ActionNotifyOwner,
			}
		}
		return Analysis{Conclusion: Unknown, Action: ActionNoAction}
	}

	clean := termtext.Clean(pane)
	tail := strings.Join(termtext.TailLines(clean, 20), "\n")

	var evidence []string
	hasCompletion := completionRe.MatchString(tail)
	hasWaiting := waitingRe.MatchString(tail)
	hasError := errorRe.MatchString(tail)
	atPrompt := termtext.IsAtPrompt(pane)

	if m := completionRe.FindString(tail); m != "" {
		evidence = append(evidence, "completion marker: "+m)
	}
	if m := waitingRe.FindString(tail); m != "" {
		evidence = append(evidence, "waiting marker: "+strings.TrimSpace(m))
	}
	if m := errorRe.FindString(tail); m != "" {
		evidence = append(evidence, "error marker: "+m)
	}

	switch {
	case hasError && !hasCompletion:
		conf := 0.6
		if ev.Trigger == TriggerPTYExit {
			conf = 0.8
			evidence = append(evidence, "process exited")
		}
		return Analysis{Conclusion: StuckOrError, Confidence: conf, Evidence: evidence, Action: ActionRetryWithHints}

	case hasCompletion:
		conf := 0.7
		if atPrompt {
			conf = 0.9
			evidence = append(evidence, "idle prompt after completion marker")
		}
		return Analysis{Conclusion: TaskComplete, Confidence: conf, Evidence: evidence, Action: ActionAssignNextTask}

	case hasWaiting && atPrompt:
		return Analysis{Conclusion: WaitingInput, Confidence: 0.8, Evidence: evidence, Action: ActionInjectPrompt}

	case ev.Trigger == TriggerPTYExit:
		evidence = append(evidence, "process exited without completion marker")
		return Analysis{Conclusion: Incomplete, Confidence: 0.6, Evidence: evidence, Action: ActionNotifyOwner}

	case ev.Trigger == TriggerHeartbeatStale:
		evidence = append(evidence, "no recent heartbeat")
		return Analysis{Conclusion: StuckOrError, Confidence: 0.5, Evidence: evidence, Action: ActionNotifyOwner}

	case atPrompt:
		evidence = append(evidence, "idle prompt, no markers")
		return Analysis{Conclusion: Incomplete, Confidence: 0.5, Evidence: evidence, Action: ActionInjectPrompt}

	default:
		return Analysis{Conclusion: Unknown, Confidence: 0.3, Evidence: evidence, Action: ActionNoAction}
	}
}
