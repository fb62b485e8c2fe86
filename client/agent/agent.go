// Package agent is the long-running foreground process: it restores the
// saved session, watches the push channel for alert activity & keeps the
// terminal view reconciled with the backend on a fixed schedule, so an
// operator who loses a few pushes still converges on the truth.
package agent

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aegisalert/aegis/client/auth"
	"github.com/aegisalert/aegis/client/fanout"
	"github.com/aegisalert/aegis/client/lifecycle"
	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/session"
	"github.com/aegisalert/aegis/colors"
	"github.com/aegisalert/aegis/shared"
	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultResyncSchedule = "1m"
	resyncJobTag          = "alert_resync"
)

type Agent struct {
	flow    *auth.Flow
	fan     *fanout.Fanout
	channel realtime.Channel
	config  shared.AgentConfig
	out     io.Writer
	logg    *zap.SugaredLogger

	cronScheduler *gocron.Scheduler
}

func New(flow *auth.Flow, fan *fanout.Fanout, channel realtime.Channel, config shared.AgentConfig, out io.Writer, logg *zap.SugaredLogger) *Agent {
	return &Agent{
		flow:    flow,
		fan:     fan,
		channel: channel,
		config:  config,
		out:     out,
		logg:    logg,
	}
}

// Run blocks until the context is cancelled. It requires a previously saved
// session - the agent never prompts for credentials.
func (a *Agent) Run(ctx context.Context) error {
	sess, err := a.flow.Bootstrap(ctx)
	if err != nil {
		return err
	}

	if sess == nil {
		return errors.New("no saved session - sign in first, then start the agent")
	}

	a.logg.Infof("Watching alerts as %v (%v)", sess.DisplayName, sess.Role)
	a.fan.Subscribe(sess.Role, a.listenerFor(sess))

	if err := a.startResyncJob(); err != nil {
		return err
	}

	// first paint, before any event or tick lands
	a.fan.Resync()

	<-ctx.Done()
	a.shutdown()

	return nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (a *Agent) startResyncJob() error {
	a.cronScheduler = newCronScheduler(a.config.TimeZone)

	schedule := a.config.ResyncSchedule
	if schedule == "" {
		schedule = defaultResyncSchedule
	}

	_, err := a.cronScheduler.Every(schedule).Tag(resyncJobTag).Do(a.fan.Resync)
	if err != nil {
		return errors.Wrap(err, "unable to schedule alert resync")
	}

	a.cronScheduler.StartAsync()
	return nil
}

func (a *Agent) shutdown() {
	a.logg.Info("Shutting down agent")
	a.cronScheduler.Stop()
	a.fan.Close()
	a.channel.Disconnect()
}

func (a *Agent) listenerFor(sess *session.Session) fanout.Listener {
	if sess.IsResponder() {
		return fanout.Listener{
			OnNotice:       a.printNotice,
			OnActiveAlerts: a.printActiveAlerts,
			OnMyResponses:  a.printOpenResponses,
		}
	}

	return fanout.Listener{
		OnNotice:   a.printNotice,
		OnMyAlerts: a.printMyAlerts,
	}
}

func (a *Agent) printNotice(notice fanout.Notice) {
	if notice.Event == realtime.EMERGENCY_ALERT_EVENT {
		fmt.Fprintln(a.out, colors.BoldRed("[ALERT] ")+notice.Message)
		return
	}

	fmt.Fprintln(a.out, colors.Green("[UPDATE] ")+notice.Message)
}

func (a *Agent) printActiveAlerts(triggers []restapi.Trigger) {
	if len(triggers) == 0 {
		fmt.Fprintln(a.out, colors.Green("No active alerts"))
		return
	}

	fmt.Fprintln(a.out, colors.Yellow(fmt.Sprintf("%v active alert(s):", len(triggers))))
	for _, trigger := range triggers {
		fmt.Fprintln(a.out, formatTriggerLine(trigger))
	}
}

func (a *Agent) printOpenResponses(responses []restapi.Response) {
	for _, response := range responses {
		if lifecycle.IsTerminalResponse(response.Status) {
			continue
		}

		fmt.Fprintf(a.out, "  you are %v on alert %v\n", colors.Cyan(response.Status), response.TriggerID)
	}
}

func (a *Agent) printMyAlerts(triggers []restapi.Trigger) {
	if len(triggers) == 0 {
		fmt.Fprintln(a.out, colors.Green("You have no alerts"))
		return
	}

	for _, trigger := range triggers {
		fmt.Fprintln(a.out, formatTriggerLine(trigger))
	}
}

func formatTriggerLine(trigger restapi.Trigger) string {
	return fmt.Sprintf("  %v  %v  %v  %v  %v",
		trigger.ID,
		colors.Cyan(trigger.Status),
		trigger.Priority,
		trigger.TriggeredBy.Name,
		trigger.Location.DisplayAddress(),
	)
}

func newCronScheduler(timeZoneArg string) *gocron.Scheduler {
	timeZone, err := time.LoadLocation(timeZoneArg)
	if err != nil {
		timeZone = time.UTC
	}

	cronScheduler := gocron.NewScheduler(timeZone)
	cronScheduler.TagsUnique()

	return cronScheduler
}
