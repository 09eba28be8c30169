package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSender struct {
	sent      []tgbotapi.MessageConfig
	callbacks []tgbotapi.CallbackConfig
	sendErr   error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeAccounts struct {
	byTG     map[int64]*model.Account
	roles    map[uuid.UUID][]model.Role
	getErr   error
	selected map[int64]model.Role
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byTG: map[int64]*model.Account{}, roles: map[uuid.UUID][]model.Role{}, selected: map[int64]model.Role{}}
}

func (f *fakeAccounts) GetByTelegramID(_ context.Context, id int64) (*model.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byTG[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccounts) CreateIfAbsent(_ context.Context, a *model.Account) (bool, error) {
	if _, ok := f.byTG[a.TelegramID]; ok {
		return false, nil
	}
	c := *a
	f.byTG[a.TelegramID] = &c
	return true, nil
}

func (f *fakeAccounts) Roles(_ context.Context, id uuid.UUID) ([]model.Role, error) {
	return f.roles[id], nil
}

func (f *fakeAccounts) AddRole(_ context.Context, id uuid.UUID, r model.Role) (bool, error) {
	for _, have := range f.roles[id] {
		if have == r {
			return false, nil
		}
	}
	f.roles[id] = append(f.roles[id], r)
	return true, nil
}

func (f *fakeAccounts) SetSelectedRole(_ context.Context, tg int64, r model.Role) error {
	a, ok := f.byTG[tg]
	if !ok {
		return errs.ErrNotFound
	}
	f.selected[tg] = r
	a.SelectedRole = &r
	return nil
}

func (f *fakeAccounts) CompleteRegistration(_ context.Context, tg int64) error {
	a, ok := f.byTG[tg]
	if !ok {
		return errs.ErrNotFound
	}
	a.RegistrationCompleted = true
	return nil
}

type fakeCategories struct {
	cats []model.NewsCategory
	subs map[uuid.UUID]bool
}

func (f *fakeCategories) List(context.Context) ([]model.NewsCategory, error) { return f.cats, nil }

func (f *fakeCategories) ToggleSubscription(_ context.Context, _, cat uuid.UUID) (bool, error) {
	if f.subs == nil {
		f.subs = map[uuid.UUID]bool{}
	}
	f.subs[cat] = !f.subs[cat]
	return f.subs[cat], nil
}

type fakeProvisioner struct{ accounts *fakeAccounts }

func (p fakeProvisioner) EnsureAccount(ctx context.Context, tp model.TelegramPrincipal) (*model.Account, error) {
	a := &model.Account{ID: uuid.Must(uuid.NewV4()), TelegramID: tp.ID, FirstName: tp.FirstName}
	if _, err := p.accounts.CreateIfAbsent(ctx, a); err != nil {
		return nil, err
	}
	if _, err := p.accounts.AddRole(ctx, a.ID, model.RoleStudent); err != nil {
		return nil, err
	}
	return p.accounts.GetByTelegramID(ctx, tp.ID)
}

type fakeAnswerer struct{ asked []string }

func (f *fakeAnswerer) Answer(_ context.Context, _ uuid.UUID, q string) string {
	f.asked = append(f.asked, q)
	return "ответ на " + q
}

type fixture struct {
	bot      *Bot
	api      *fakeSender
	accounts *fakeAccounts
	cats     *fakeCategories
	answers  *fakeAnswerer
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		api:      &fakeSender{},
		accounts: newFakeAccounts(),
		cats:     &fakeCategories{},
		answers:  &fakeAnswerer{},
	}
	f.bot = New(f.api, f.accounts, f.cats, fakeProvisioner{f.accounts}, f.answers, "https://app.example/", zaptest.NewLogger(t), nil)
	return f
}

func (f *fixture) register(tg int64, completed bool) *model.Account {
	a := &model.Account{ID: uuid.Must(uuid.NewV4()), TelegramID: tg, FirstName: "Иван", RegistrationCompleted: completed}
	f.accounts.byTG[tg] = a
	return a
}

func text(tg int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: s,
		From: &tgbotapi.User{ID: tg, FirstName: "Иван"},
		Chat: &tgbotapi.Chat{ID: tg},
	}}
}

func callback(tg int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    data,
		From:    &tgbotapi.User{ID: tg, FirstName: "Иван"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: tg}},
	}}
}

func buttons(m tgbotapi.MessageConfig) []tgbotapi.InlineKeyboardButton {
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []tgbotapi.InlineKeyboardButton
	for _, row := range kb.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func TestStart_UnknownUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/start")))

	m := f.api.last(t)
	require.Equal(t, textWelcome, m.Text)
	b := buttons(m)
	require.Len(t, b, 1)
	require.Equal(t, cbStartRegistration, *b[0].CallbackData)
}

func TestStart_PendingRegistration(t *testing.T) {
	f := newFixture(t)
	f.register(42, false)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/start")))

	m := f.api.last(t)
	require.Equal(t, textPickRole, m.Text)
	b := buttons(m)
	require.Len(t, b, 2)
	require.Equal(t, "role_student", *b[0].CallbackData)
	require.Equal(t, "role_parent", *b[1].CallbackData)
}

func TestStart_Registered(t *testing.T) {
	f := newFixture(t)
	f.register(42, true)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/start")))
	require.Contains(t, f.api.last(t).Text, "Привет, Иван!")
}

func TestHelp_UsesHTML(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/help")))
	m := f.api.last(t)
	require.Equal(t, tgbotapi.ModeHTML, m.ParseMode)
	require.Contains(t, m.Text, "/webapp")
}

func TestWebApp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/webapp")))
	require.Equal(t, textNeedRegistration, f.api.last(t).Text)

	f.register(42, true)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "/webapp")))
	m := f.api.last(t)
	require.Equal(t, textOpenApp, m.Text)
	b := buttons(m)
	require.Len(t, b, 1)
	require.Equal(t, "https://app.example/", *b[0].URL)
}

func TestFreeText(t *testing.T) {
	f := newFixture(t)
	f.register(42, false)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "Когда каникулы?")))
	require.Equal(t, textFinishFirst, f.api.last(t).Text)
	require.Empty(t, f.answers.asked)

	f.accounts.byTG[42].RegistrationCompleted = true
	require.NoError(t, f.bot.HandleUpdate(context.Background(), text(42, "Когда каникулы?")))
	require.Equal(t, "ответ на Когда каникулы?", f.api.last(t).Text)
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	cat := model.NewsCategory{ID: uuid.Must(uuid.NewV4()), Name: "Спорт"}
	f.cats.cats = []model.NewsCategory{cat}
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(42, cbStartRegistration)))
	acc, err := f.accounts.GetByTelegramID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, textPickRole, f.api.last(t).Text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(42, "role_parent")))
	require.Equal(t, model.RoleParent, f.accounts.selected[42])
	m := f.api.last(t)
	require.Equal(t, textCategories, m.Text)
	b := buttons(m)
	require.Len(t, b, 2)
	require.Equal(t, "📌 Спорт", b[0].Text)
	require.Equal(t, "cat_"+cat.ID.String(), *b[0].CallbackData)
	require.Equal(t, cbCompleteRegistration, *b[1].CallbackData)

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(42, "cat_"+cat.ID.String())))
	require.Equal(t, "Подписались на категорию!", f.api.callbacks[len(f.api.callbacks)-1].Text)
	require.NoError(t, f.bot.HandleUpdate(ctx, callback(42, "cat_"+cat.ID.String())))
	require.Equal(t, "Отписались от категории", f.api.callbacks[len(f.api.callbacks)-1].Text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(42, cbCompleteRegistration)))
	require.Equal(t, textCompleted, f.api.last(t).Text)
	require.True(t, f.accounts.byTG[42].RegistrationCompleted)
	require.ElementsMatch(t, []model.Role{model.RoleStudent, model.RoleParent}, f.accounts.roles[acc.ID])
}

func TestCallback_RejectsPrivilegedRole(t *testing.T) {
	f := newFixture(t)
	f.register(42, false)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), callback(42, "role_admin")))
	require.Empty(t, f.accounts.selected)
	require.Empty(t, f.api.sent)
}

func TestCallback_UnknownProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), callback(42, "role_student")))
	require.Equal(t, "Ошибка: профиль не найден", f.api.callbacks[0].Text)
}

func TestHandleUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	f.accounts.getErr = errors.New("db down")
	require.Error(t, f.bot.HandleUpdate(context.Background(), text(42, "/start")))

	f = newFixture(t)
	f.api.sendErr = errors.New("network")
	err := f.bot.HandleUpdate(context.Background(), text(42, "/help"))
	require.ErrorIs(t, err, errs.ErrUpstream)
}

func TestHandleUpdate_IgnoresEmpty(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), tgbotapi.Update{}))
	require.NoError(t, f.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}))
	require.Empty(t, f.api.sent)
}

func TestHandleUpdate_IgnoresMessageWithoutChat(t *testing.T) {
	f := newFixture(t)
	upd := text(42, "/start")
	upd.Message.Chat = nil
	require.NotPanics(t, func() {
		require.NoError(t, f.bot.HandleUpdate(context.Background(), upd))
	})
	require.Empty(t, f.api.sent)
	require.Empty(t, f.answers.asked)
}

type fakeRaw struct {
	endpoint string
	params   tgbotapi.Params
	resp     *tgbotapi.APIResponse
	err      error
}

func (f *fakeRaw) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.endpoint, f.params = endpoint, params
	return f.resp, f.err
}

func TestRegisterWebhook(t *testing.T) {
	raw := &fakeRaw{resp: &tgbotapi.APIResponse{Ok: true}}
	require.NoError(t, RegisterWebhook(raw, "https://portal.example/telegram-webhook", "hook-secret"))
	require.Equal(t, "setWebhook", raw.endpoint)
	require.Equal(t, "https://portal.example/telegram-webhook", raw.params["url"])
	require.Equal(t, "hook-secret", raw.params["secret_token"])

	raw.resp = &tgbotapi.APIResponse{Ok: false, Description: "bad webhook"}
	require.ErrorIs(t, RegisterWebhook(raw, "https://portal.example/telegram-webhook", "hook-secret"), errs.ErrUpstream)

	raw.resp, raw.err = nil, errors.New("network")
	require.ErrorIs(t, RegisterWebhook(raw, "https://portal.example/telegram-webhook", "hook-secret"), errs.ErrUpstream)
}
