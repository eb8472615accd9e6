package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"terminbot/internal/booking"
	"terminbot/internal/catalog"
	"terminbot/internal/scheduler"
	"terminbot/internal/subscription"
	"terminbot/pkg/logx"
)

const (
	departmentsPerRow = 2
	dialogTimeout     = 45 * time.Second
)

// dialog is the per-chat selection state. It only drives the menu flow;
// the durable subscription state lives in the store.
type dialog struct {
	departmentID     string
	appointmentType  string
	types            []string // last shown type list, resolved by index
	awaitingInterval bool
}

type Router struct {
	bot   *tele.Bot
	cat   *catalog.Service
	probe *booking.Probe
	sched *scheduler.Service
	store subscription.Store
	log   logx.Logger

	mu      sync.Mutex
	dialogs map[int64]*dialog
}

func newRouter(bot *tele.Bot, cat *catalog.Service, probe *booking.Probe, sched *scheduler.Service, store subscription.Store, log logx.Logger) *Router {
	return &Router{
		bot:     bot,
		cat:     cat,
		probe:   probe,
		sched:   sched,
		store:   store,
		log:     log,
		dialogs: map[int64]*dialog{},
	}
}

var (
	btnDepartment  = tele.Btn{Unique: "dep"}
	btnType        = tele.Btn{Unique: "ttype"}
	btnReuse       = tele.Btn{Unique: "reuse"}
	btnSubscribe   = tele.Btn{Unique: "subscribe"}
	btnReturn      = tele.Btn{Unique: "return"}
	btnUnsubscribe = tele.Btn{Unique: "unsub"}
)

func (r *Router) register() {
	r.bot.Handle("/start", r.cmdStart)
	r.bot.Handle("/stats", r.cmdStats)
	r.bot.Handle("/stop", r.cmdStop)
	r.bot.Handle(&btnDepartment, r.onDepartment)
	r.bot.Handle(&btnType, r.onType)
	r.bot.Handle(&btnReuse, r.onReuse)
	r.bot.Handle(&btnSubscribe, r.onSubscribe)
	r.bot.Handle(&btnReturn, r.cmdStart)
	r.bot.Handle(&btnUnsubscribe, r.cmdStop)
	r.bot.Handle(tele.OnText, r.onText)
}

func (r *Router) state(chatID int64) *dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dialogs[chatID]
	if !ok {
		d = &dialog{}
		r.dialogs[chatID] = d
	}
	return d
}

func (r *Router) cmdStart(c tele.Context) error {
	d := r.state(c.Chat().ID)
	r.mu.Lock()
	d.awaitingInterval = false
	hasSelection := d.departmentID != "" && d.appointmentType != ""
	r.mu.Unlock()

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	var row tele.Row
	for _, dep := range r.cat.Departments() {
		row = append(row, markup.Data(dep.Name, btnDepartment.Unique, dep.ID))
		if len(row) == departmentsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if hasSelection {
		rows = append(rows, markup.Row(markup.Data("Reuse last selection", btnReuse.Unique)))
	}
	markup.Inline(rows...)

	if err := c.Send(textSelectDepartment, markup); err != nil {
		return err
	}
	return r.sendSubscriptionStatus(c)
}

func (r *Router) sendSubscriptionStatus(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	sub, err := r.store.Get(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if !errors.Is(err, subscription.ErrNotFound) {
			r.log.Warn("subscription status lookup failed", logx.Err(err))
		}
		return nil
	}

	dep, _ := r.cat.ByID(sub.DepartmentID)
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Unsubscribe", btnUnsubscribe.Unique)))
	return c.Send(textStatus(dep.Name, sub), markup)
}

func (r *Router) cmdStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	subs, err := r.store.ListAll(ctx)
	if err != nil {
		r.log.Warn("stats lookup failed", logx.Err(err))
		return c.Send(textGenericFailure)
	}
	return c.Send(textStats(subs))
}

func (r *Router) cmdStop(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	removed, err := r.sched.Unsubscribe(ctx, strconv.FormatInt(c.Chat().ID, 10), false)
	if err != nil {
		r.log.Warn("unsubscribe failed", logx.Err(err))
		return c.Send(textGenericFailure)
	}
	if !removed {
		return c.Send(textNoSubscription)
	}
	// The goodbye itself is sent by the checker; nothing more to say here.
	return nil
}

func (r *Router) onDepartment(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	dep, ok := r.cat.ByID(c.Data())
	if !ok {
		return r.cmdStart(c)
	}
	d := r.state(c.Chat().ID)
	r.mu.Lock()
	d.departmentID = dep.ID
	r.mu.Unlock()

	return r.sendTypeMenu(c, dep)
}

// sendTypeMenu lists the department's appointment types, most used on top.
// Buttons carry list indices: type names easily exceed Telegram's 64-byte
// callback payload limit.
func (r *Router) sendTypeMenu(c tele.Context, dep catalog.Department) error {
	if err := c.Send(textFetchingTypes); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	available, err := r.cat.AvailableTypes(ctx, dep)
	if err != nil {
		r.log.Warn("type discovery failed", logx.String("department", dep.ID), logx.Err(err))
		return c.Send(textBookingUnreachable)
	}

	shown := make([]string, 0, len(available)+len(dep.TypicalTypes))
	seen := map[string]struct{}{}
	for _, t := range r.cat.TypicalTypes(dep) {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			shown = append(shown, t)
		}
	}
	for _, t := range available {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			shown = append(shown, t)
		}
	}

	d := r.state(c.Chat().ID)
	r.mu.Lock()
	d.types = shown
	r.mu.Unlock()

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(shown))
	for i, t := range shown {
		rows = append(rows, markup.Row(markup.Data(t, btnType.Unique, strconv.Itoa(i))))
	}
	markup.Inline(rows...)
	return c.Send(textSelectType, markup)
}

func (r *Router) onType(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	d := r.state(c.Chat().ID)
	r.mu.Lock()
	idx, err := strconv.Atoi(c.Data())
	var chosen string
	if err == nil && idx >= 0 && idx < len(d.types) {
		chosen = d.types[idx]
		d.appointmentType = chosen
	}
	r.mu.Unlock()

	if chosen == "" {
		return r.cmdStart(c)
	}
	return r.queryAndOfferSubscribe(c)
}

func (r *Router) onReuse(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	d := r.state(c.Chat().ID)
	r.mu.Lock()
	ok := d.departmentID != "" && d.appointmentType != ""
	r.mu.Unlock()
	if !ok {
		return r.cmdStart(c)
	}
	return r.queryAndOfferSubscribe(c)
}

// queryAndOfferSubscribe runs one immediate availability check for the
// current selection and then offers the recurring subscription.
func (r *Router) queryAndOfferSubscribe(c tele.Context) error {
	d := r.state(c.Chat().ID)
	r.mu.Lock()
	depID, termin := d.departmentID, d.appointmentType
	r.mu.Unlock()

	if err := c.Send(textFetchingAppointments(termin)); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	results, err := r.probe.Check(ctx, depID, termin)
	switch {
	case errors.Is(err, booking.ErrUnsupportedType):
		dep, _ := r.cat.ByID(depID)
		if err := c.Send(textTypeRejected(dep.Name, termin)); err != nil {
			return err
		}
	case err != nil:
		r.log.Warn("manual availability check failed", logx.Err(err))
		if err := c.Send(textBookingUnreachable); err != nil {
			return err
		}
	case len(results) == 0:
		if err := c.Send(textEverythingBooked); err != nil {
			return err
		}
	default:
		for _, res := range results {
			if err := c.Send(textAppointments(res)); err != nil {
				return err
			}
		}
		if dep, ok := r.cat.ByID(depID); ok {
			if err := c.Send(textBookingLink(dep.FrameURL)); err != nil {
				return err
			}
		}
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.Data("Subscribe", btnSubscribe.Unique)),
		markup.Row(markup.Data("Return back", btnReturn.Unique)),
	)
	return c.Send(textOfferSubscription, markup)
}

func (r *Router) onSubscribe(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	d := r.state(c.Chat().ID)
	r.mu.Lock()
	ok := d.departmentID != "" && d.appointmentType != ""
	d.awaitingInterval = ok
	r.mu.Unlock()
	if !ok {
		return r.cmdStart(c)
	}
	return c.Send(textAskInterval(r.sched.MinInterval()))
}

func (r *Router) onText(c tele.Context) error {
	d := r.state(c.Chat().ID)
	r.mu.Lock()
	awaiting := d.awaitingInterval
	depID, termin := d.departmentID, d.appointmentType
	r.mu.Unlock()

	if !awaiting {
		return r.cmdStart(c)
	}

	minutes, err := strconv.Atoi(c.Text())
	if err != nil || minutes <= 0 {
		return c.Send(textIntervalTooShort(r.sched.MinInterval()))
	}
	interval := time.Duration(minutes) * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
	defer cancel()

	err = r.sched.Subscribe(ctx, strconv.FormatInt(c.Chat().ID, 10), depID, termin, interval)
	switch {
	case errors.Is(err, scheduler.ErrIntervalTooShort):
		return c.Send(textIntervalTooShort(r.sched.MinInterval()))
	case err != nil:
		r.log.Error("subscribe failed", logx.Err(err))
		return c.Send(textGenericFailure)
	}

	r.mu.Lock()
	d.awaitingInterval = false
	r.mu.Unlock()
	return c.Send(textSubscribed(minutes))
}
