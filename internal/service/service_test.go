package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestStartTimerRejectsSecondRunningEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.StartTimer(ctx, member, map[string]any{"description": "design review"})
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if first["end_time"] != nil {
		t.Fatalf("expected running entry, got end_time %v", first["end_time"])
	}
	if first["user_id"] != member.UserID {
		t.Fatalf("entry not owned by caller: %v", first["user_id"])
	}
	if got, ok := first["start_time"].(time.Time); !ok || !got.Equal(h.now) {
		t.Fatalf("unexpected start_time %v", first["start_time"])
	}

	_, err = h.svc.StartTimer(ctx, member, map[string]any{})
	wantErr(t, err, domain.ErrConflict, "You already have an active time tracking session.")

	// another user is unaffected
	if _, err := h.svc.StartTimer(ctx, auth.AuthContext{UserID: 6, Roles: []string{"member"}}, nil); err != nil {
		t.Fatalf("StartTimer for another user: %v", err)
	}
}

func TestStartTimerMapsRunningIndexViolation(t *testing.T) {
	h := newHarness(t)
	h.repo.InsertErr = fmt.Errorf("write time_entries: %w", &pgconn.PgError{Code: "23505", ConstraintName: "time_entries_one_running"})

	_, err := h.svc.StartTimer(context.Background(), member, nil)
	wantErr(t, err, domain.ErrConflict, "You already have an active time tracking session.")
}

func TestStartTimerRequiresAuthentication(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.StartTimer(context.Background(), anon, nil)
	wantErr(t, err, domain.ErrUnauthenticated, "")
}

func TestStopTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	te := h.entity("TimeEntry")
	start := h.now.Add(-90 * time.Minute)
	entry := h.repo.Seed(te, model.Record{"user_id": member.UserID, "start_time": start, "billable": true})
	id := entry["id"].(int64)

	_, err := h.svc.StopTimer(ctx, auth.AuthContext{UserID: 6, Roles: []string{"member"}}, id)
	wantErr(t, err, domain.ErrForbidden, "This action is unauthorized.")

	stopped, err := h.svc.StopTimer(ctx, member, id)
	if err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	if stopped["duration"] != int64(5400) {
		t.Fatalf("duration = %v, want 5400", stopped["duration"])
	}
	if got, ok := stopped["end_time"].(time.Time); !ok || !got.Equal(h.now) {
		t.Fatalf("unexpected end_time %v", stopped["end_time"])
	}

	_, err = h.svc.StopTimer(ctx, admin, id)
	wantErr(t, err, domain.ErrConflict, "Time entry is already stopped.")
}

func TestStopTimerByAdmin(t *testing.T) {
	h := newHarness(t)
	te := h.entity("TimeEntry")
	entry := h.repo.Seed(te, model.Record{"user_id": member.UserID, "start_time": h.now.Add(-time.Minute)})

	if _, err := h.svc.StopTimer(context.Background(), admin, entry["id"].(int64)); err != nil {
		t.Fatalf("admin StopTimer: %v", err)
	}
}

func TestTimeEntryUpdateKeepsRunningState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	te := h.entity("TimeEntry")
	running := h.repo.Seed(te, model.Record{"user_id": member.UserID, "start_time": h.now.Add(-time.Hour)})
	id := running["id"].(int64)

	_, err := h.svc.Update(ctx, member, te, id, map[string]any{"end_time": "2024-06-01T09:30:00Z"})
	wantErr(t, err, domain.ErrConflict, "A running time entry can only be stopped through the stop action.")
	if got := h.repo.Get(te, id); got["end_time"] != nil {
		t.Fatalf("running entry was stopped by update: %v", got["end_time"])
	}

	// other fields of a running entry stay editable
	if _, err := h.svc.Update(ctx, member, te, id, map[string]any{"description": "planning", "end_time": nil}); err != nil {
		t.Fatalf("Update running entry: %v", err)
	}

	if _, err := h.svc.StopTimer(ctx, member, id); err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	_, err = h.svc.Update(ctx, member, te, id, map[string]any{"end_time": nil})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["end_time"]) == 0 {
		t.Fatalf("expected end_time validation error reopening a stopped entry, got %v", err)
	}
	if got := h.repo.Get(te, id); got["end_time"] == nil {
		t.Fatalf("stopped entry was reopened")
	}
}

func TestTimeEntryRecordsArePrivateToOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	te := h.entity("TimeEntry")
	other := auth.AuthContext{UserID: 6, Roles: []string{"member"}}
	entry := h.repo.Seed(te, model.Record{"user_id": member.UserID, "start_time": h.now.Add(-time.Hour)})
	id := entry["id"].(int64)

	_, err := h.svc.Show(ctx, other, te, id, "")
	wantErr(t, err, domain.ErrForbidden, "")
	_, err = h.svc.Update(ctx, other, te, id, map[string]any{"description": "mine now"})
	wantErr(t, err, domain.ErrForbidden, "")
	err = h.svc.Delete(ctx, manager, te, id)
	wantErr(t, err, domain.ErrForbidden, "")

	// the owner cannot hand the entry to someone else
	_, err = h.svc.Update(ctx, member, te, id, map[string]any{"user_id": 6})
	wantErr(t, err, domain.ErrForbidden, "")
	if got := h.repo.Get(te, id); got["user_id"] != member.UserID {
		t.Fatalf("user_id changed to %v", got["user_id"])
	}

	if _, err := h.svc.Show(ctx, member, te, id, ""); err != nil {
		t.Fatalf("owner Show: %v", err)
	}
	if _, err := h.svc.Update(ctx, admin, te, id, map[string]any{"user_id": 6}); err != nil {
		t.Fatalf("admin reassign: %v", err)
	}
	if err := h.svc.Delete(ctx, admin, te, id); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
}

func TestTimeEntryCreateForAnotherUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	te := h.entity("TimeEntry")
	payload := map[string]any{
		"user_id":    6,
		"start_time": "2024-06-01T08:00:00Z",
		"end_time":   "2024-06-01T09:00:00Z",
	}

	_, err := h.svc.Create(ctx, member, te, payload)
	wantErr(t, err, domain.ErrForbidden, "")

	rec, err := h.svc.Create(ctx, admin, te, payload)
	if err != nil {
		t.Fatalf("admin Create: %v", err)
	}
	if rec["user_id"] != int64(6) {
		t.Fatalf("user_id = %v, want 6", rec["user_id"])
	}
}

func TestCurrentTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cur, err := h.svc.CurrentTimer(ctx, member)
	if err != nil || cur != nil {
		t.Fatalf("expected no running entry, got %v %v", cur, err)
	}

	started, err := h.svc.StartTimer(ctx, member, nil)
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	cur, err = h.svc.CurrentTimer(ctx, member)
	if err != nil {
		t.Fatalf("CurrentTimer: %v", err)
	}
	if cur["id"] != started["id"] {
		t.Fatalf("current = %v, want %v", cur["id"], started["id"])
	}
}

func TestTimeEntryDurationDerivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	te := h.entity("TimeEntry")

	rec, err := h.svc.Create(ctx, member, te, map[string]any{
		"start_time": "2024-06-01T08:00:00Z",
		"end_time":   "2024-06-01T09:15:00Z",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec["duration"] != int64(4500) {
		t.Fatalf("duration = %v, want 4500", rec["duration"])
	}

	explicit, err := h.svc.Create(ctx, member, te, map[string]any{
		"start_time": "2024-06-01T08:00:00Z",
		"end_time":   "2024-06-01T09:00:00Z",
		"duration":   60,
	})
	if err != nil {
		t.Fatalf("Create with duration: %v", err)
	}
	if explicit["duration"] != int64(60) {
		t.Fatalf("explicit duration overwritten: %v", explicit["duration"])
	}

	_, err = h.svc.Create(ctx, member, te, map[string]any{
		"start_time": "2024-06-01T10:00:00Z",
		"end_time":   "2024-06-01T09:00:00Z",
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["end_time"]) == 0 {
		t.Fatalf("expected end_time validation error, got %v", err)
	}

	// update with only end_time uses the stored start
	updated, err := h.svc.Update(ctx, member, te, recordID(rec), map[string]any{"end_time": "2024-06-01T08:30:00Z"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated["duration"] != int64(1800) {
		t.Fatalf("duration after update = %v, want 1800", updated["duration"])
	}
}

func TestDeleteCompanyWithContactsConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	company := h.repo.Seed(h.entity("Company"), model.Record{"name": "Acme"})
	id := company["id"].(int64)
	contact := h.repo.Seed(h.entity("Contact"), model.Record{"first_name": "Ada", "last_name": "L", "company_id": id})

	err := h.svc.Delete(ctx, manager, h.entity("Company"), id)
	wantErr(t, err, domain.ErrConflict, "Cannot delete company with associated contacts")

	if h.repo.Get(h.entity("Company"), id) == nil {
		t.Fatal("company was deleted")
	}
	if h.repo.Get(h.entity("Contact"), contact["id"].(int64)) == nil {
		t.Fatal("contact was deleted")
	}
	if len(h.pub.topics()) != 0 {
		t.Fatalf("unexpected events: %v", h.pub.topics())
	}
}

func TestDeleteContactLinkedToClientConflicts(t *testing.T) {
	h := newHarness(t)
	contact := h.repo.Seed(h.entity("Contact"), model.Record{"first_name": "Ada", "last_name": "L"})
	id := contact["id"].(int64)
	h.repo.Seed(h.entity("Client"), model.Record{"contact_id": id, "status": "active"})

	err := h.svc.Delete(context.Background(), admin, h.entity("Contact"), id)
	wantErr(t, err, domain.ErrConflict, "Cannot delete contact that is linked to a client")
}

func TestDeleteMapsForeignKeyViolation(t *testing.T) {
	h := newHarness(t)
	company := h.repo.Seed(h.entity("Company"), model.Record{"name": "Acme"})
	h.repo.DeleteErr = &pgconn.PgError{Code: "23503", ConstraintName: "contacts_company_id_fkey"}

	err := h.svc.Delete(context.Background(), admin, h.entity("Company"), company["id"].(int64))
	wantErr(t, err, domain.ErrConflict, "Cannot delete company with associated contacts")
}

func TestDeleteRemovesRecordBlobsAndPublishes(t *testing.T) {
	h := newHarness(t)
	e := h.entity("Company")
	company := h.repo.Seed(e, model.Record{"name": "Acme", "logo": "logos/abc.png"})
	id := company["id"].(int64)

	if err := h.svc.Delete(context.Background(), manager, e, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if diff := cmp.Diff([]string{"logos/abc.png"}, h.blobs.deleted); diff != "" {
		t.Fatalf("deleted blobs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"crm.company.deleted"}, h.pub.topics()); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}
}

func TestDeleteRequiresManager(t *testing.T) {
	h := newHarness(t)
	company := h.repo.Seed(h.entity("Company"), model.Record{"name": "Acme"})

	err := h.svc.Delete(context.Background(), member, h.entity("Company"), company["id"].(int64))
	wantErr(t, err, domain.ErrForbidden, "")
	err = h.svc.Delete(context.Background(), manager, h.entity("Company"), 999)
	wantErr(t, err, domain.ErrNotFound, "Company not found")
}

func TestConfirmSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.entity("NewsletterSubscriber")
	sub := h.repo.Seed(e, model.Record{"email": "a@example.com", "confirmed": false, "token": "tok-1"})

	_, err := h.svc.Confirm(ctx, "nope")
	wantErr(t, err, domain.ErrNotFound, "Invalid or expired token")
	if h.repo.Get(e, sub["id"].(int64))["confirmed"] != false {
		t.Fatal("subscriber mutated by failed confirm")
	}

	rec, err := h.svc.Confirm(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec["confirmed"] != true || rec["token"] != nil {
		t.Fatalf("unexpected confirmed record: %v", rec)
	}

	_, err = h.svc.Confirm(ctx, "  ")
	wantErr(t, err, domain.ErrValidation, "")
}

func TestConfirmKnownTokenOfConfirmedSubscriberIsConflictNotNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.entity("NewsletterSubscriber")
	h.repo.Seed(e, model.Record{"email": "a@example.com", "confirmed": false, "token": "tok-1"})

	if _, err := h.svc.Confirm(ctx, "tok-1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	_, err := h.svc.Confirm(ctx, "tok-1")
	wantErr(t, err, domain.ErrConflict, "Subscription is already confirmed.")
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("confirmed subscriber reported as unknown token: %v", err)
	}

	_, err = h.svc.Confirm(ctx, "tok-unknown")
	wantErr(t, err, domain.ErrNotFound, "Invalid or expired token")
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	e := h.entity("NewsletterSubscriber")

	rec, err := h.svc.Subscribe(context.Background(), map[string]any{"email": "new@example.com", "confirmed": true})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if rec["confirmed"] != false {
		t.Fatalf("public subscribe must not confirm: %v", rec["confirmed"])
	}
	if _, ok := rec["token"]; ok {
		t.Fatal("token must not be returned")
	}
	stored := h.repo.Get(e, recordID(rec))
	if tok, _ := stored["token"].(string); len(tok) != 40 {
		t.Fatalf("unexpected token %q", tok)
	}
	want := []string{"crm.newsletter_subscriber.created", "crm.newsletter.subscribed"}
	if diff := cmp.Diff(want, h.pub.topics()); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}

	_, err = h.svc.Subscribe(context.Background(), map[string]any{"email": "new@example.com"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["email"][0] != "The email has already been taken." {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.entity("NewsletterSubscriber")
	sub := h.repo.Seed(e, model.Record{"email": "a@example.com", "token": "tok-1"})
	id := sub["id"].(int64)

	wantErr(t, h.svc.Unsubscribe(ctx, anon, id, ""), domain.ErrUnauthenticated, "")
	wantErr(t, h.svc.Unsubscribe(ctx, anon, id, "wrong"), domain.ErrUnauthenticated, "")
	wantErr(t, h.svc.Unsubscribe(ctx, manager, id, ""), domain.ErrForbidden, "")

	if err := h.svc.Unsubscribe(ctx, anon, id, "tok-1"); err != nil {
		t.Fatalf("Unsubscribe with token: %v", err)
	}
	if h.repo.Get(e, id) != nil {
		t.Fatal("subscriber not deleted")
	}

	other := h.repo.Seed(e, model.Record{"email": "b@example.com", "token": "tok-2"})
	if err := h.svc.Unsubscribe(ctx, admin, other["id"].(int64), ""); err != nil {
		t.Fatalf("admin Unsubscribe: %v", err)
	}
}

func TestUserGates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.entity("User")

	_, err := h.svc.List(ctx, member, users, url.Values{}, "/api/users")
	wantErr(t, err, domain.ErrForbidden, "")
	_, err = h.svc.List(ctx, anon, users, url.Values{}, "/api/users")
	wantErr(t, err, domain.ErrUnauthenticated, "")
	if _, err := h.svc.List(ctx, admin, users, url.Values{}, "/api/users"); err != nil {
		t.Fatalf("admin list: %v", err)
	}

	_, err = h.svc.Show(ctx, member, users, 6, "")
	wantErr(t, err, domain.ErrForbidden, "")
	if _, err := h.svc.Show(ctx, member, users, 5, ""); err != nil {
		t.Fatalf("own profile: %v", err)
	}
	if _, err := h.svc.Show(ctx, admin, users, 6, ""); err != nil {
		t.Fatalf("admin view: %v", err)
	}

	_, err = h.svc.Update(ctx, member, users, 5, map[string]any{"role": "admin"})
	wantErr(t, err, domain.ErrForbidden, "")
	if _, err := h.svc.Update(ctx, member, users, 5, map[string]any{"name": "Renamed", "role": "member"}); err != nil {
		t.Fatalf("own update: %v", err)
	}
	if _, err := h.svc.Update(ctx, admin, users, 5, map[string]any{"role": "manager"}); err != nil {
		t.Fatalf("admin role change: %v", err)
	}

	_, err = h.svc.Create(ctx, manager, users, map[string]any{"name": "X", "email": "x@example.com", "password": "secret123"})
	wantErr(t, err, domain.ErrForbidden, "")
}

func TestCreateUserHashesPassword(t *testing.T) {
	h := newHarness(t)
	users := h.entity("User")

	rec, err := h.svc.Create(context.Background(), admin, users, map[string]any{
		"name": "New", "email": "new@example.com", "password": "secret123",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := rec["password"]; ok {
		t.Fatal("password returned")
	}
	if rec["role"] != "member" {
		t.Fatalf("default role = %v", rec["role"])
	}
	hash, _ := h.repo.Get(users, recordID(rec))["password"].(string)
	if hash == "secret123" || !auth.CheckPassword(hash, "secret123") {
		t.Fatalf("password not hashed: %q", hash)
	}
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.entity("User")
	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h.repo.Update(ctx, users, 5, model.Record{"password": hash, "email": "m@example.com"}) //nolint:errcheck

	out, err := h.svc.Login(ctx, "m@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out["token_type"] != "Bearer" || out["expires_in"] != int64(3600) {
		t.Fatalf("unexpected login payload: %v", out)
	}
	if tok, _ := out["token"].(string); strings.Count(tok, ".") != 2 {
		t.Fatalf("token is not a JWT: %q", tok)
	}
	if _, ok := out["user"].(model.Record)["password"]; ok {
		t.Fatal("password leaked in login payload")
	}

	_, err = h.svc.Login(ctx, "m@example.com", "wrong")
	wantErr(t, err, domain.ErrUnauthenticated, "Invalid credentials.")
	_, err = h.svc.Login(ctx, "nobody@example.com", "secret123")
	wantErr(t, err, domain.ErrUnauthenticated, "Invalid credentials.")
	_, err = h.svc.Login(ctx, "", "")
	wantErr(t, err, domain.ErrValidation, "")

	if err := h.svc.Logout(ctx, member); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if diff := cmp.Diff([]string{"t-member"}, h.revoker.revoked); diff != "" {
		t.Fatalf("revoked (-want +got):\n%s", diff)
	}
	wantErr(t, h.svc.Logout(ctx, anon), domain.ErrUnauthenticated, "")
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	me, err := h.svc.Me(context.Background(), member)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me["id"] != int64(5) {
		t.Fatalf("unexpected user %v", me)
	}
	_, err = h.svc.Me(context.Background(), anon)
	wantErr(t, err, domain.ErrUnauthenticated, "")
}

func TestCreateAssignsOwner(t *testing.T) {
	h := newHarness(t)
	deals := h.entity("Deal")

	rec, err := h.svc.Create(context.Background(), member, deals, map[string]any{"title": "Renewal", "value": 1200.5})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec["user_id"] != member.UserID || rec["stage"] != "lead" {
		t.Fatalf("unexpected record: %v", rec)
	}

	assigned, err := h.svc.Create(context.Background(), member, deals, map[string]any{"title": "Other", "user_id": 6})
	if err != nil {
		t.Fatalf("Create with owner: %v", err)
	}
	if assigned["user_id"] != int64(6) {
		t.Fatalf("explicit owner replaced: %v", assigned["user_id"])
	}
	if diff := cmp.Diff([]string{"crm.deal.created", "crm.deal.created"}, h.pub.topics()); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}
}

func TestCreateValidationFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), member, h.entity("Company"), map[string]any{"email": "not-an-email"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["name"][0] != "The name field is required." {
		t.Fatalf("unexpected name message: %v", verr.Fields)
	}
	if verr.Fields["email"][0] != "The email field must be a valid email address." {
		t.Fatalf("unexpected email message: %v", verr.Fields)
	}
}

func TestMineScopesToCaller(t *testing.T) {
	h := newHarness(t)
	deals := h.entity("Deal")
	h.repo.Seed(deals, model.Record{"title": "mine", "user_id": member.UserID})
	h.repo.Seed(deals, model.Record{"title": "theirs", "user_id": int64(6)})

	page, err := h.svc.Mine(context.Background(), member, deals, url.Values{"with": {"user,bogus"}}, "/api/deals/my-deals")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if page.Total != 1 || page.Data[0]["title"] != "mine" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if h.repo.LastList().Scope["user_id"] != member.UserID {
		t.Fatalf("missing owner scope: %v", h.repo.LastList().Scope)
	}
	if diff := cmp.Diff([]string{"user"}, h.loader.paths); diff != "" {
		t.Fatalf("relations (-want +got):\n%s", diff)
	}
}

func TestPublicTestimonials(t *testing.T) {
	h := newHarness(t)
	e := h.entity("Testimonial")
	h.repo.Seed(e, model.Record{"client_name": "A", "is_published": true})
	h.repo.Seed(e, model.Record{"client_name": "B", "is_published": false})

	page, err := h.svc.PublicList(context.Background(), e, url.Values{}, "/api/testimonials/public")
	if err != nil {
		t.Fatalf("PublicList: %v", err)
	}
	if page.Total != 1 || page.Data[0]["client_name"] != "A" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestPublicCreate(t *testing.T) {
	h := newHarness(t)
	rec, err := h.svc.PublicCreate(context.Background(), h.entity("WebsiteContact"), map[string]any{
		"name": "Visitor", "email": "v@example.com", "message": "Hello",
	})
	if err != nil {
		t.Fatalf("PublicCreate: %v", err)
	}
	if rec["status"] != "new" {
		t.Fatalf("default status = %v", rec["status"])
	}
	_, err = h.svc.PublicCreate(context.Background(), h.entity("Company"), map[string]any{"name": "X"})
	wantErr(t, err, domain.ErrUnauthenticated, "")
}

func TestTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deals := h.entity("Deal")
	deal := h.repo.Seed(deals, model.Record{"title": "Big", "stage": "proposal"})
	id := deal["id"].(int64)

	won, err := h.svc.Transition(ctx, member, deals, id, map[string]any{"stage": "won"})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got, ok := won["actual_close_date"].(time.Time); !ok || !got.Equal(want) {
		t.Fatalf("actual_close_date = %v, want %v", won["actual_close_date"], want)
	}

	reopened, err := h.svc.Transition(ctx, member, deals, id, map[string]any{"stage": "negotiation"})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if reopened["actual_close_date"] != nil {
		t.Fatalf("actual_close_date not cleared: %v", reopened["actual_close_date"])
	}

	_, err = h.svc.Transition(ctx, member, deals, id, map[string]any{"stage": "bogus"})
	wantErr(t, err, domain.ErrValidation, "")
	_, err = h.svc.Transition(ctx, member, deals, 999, map[string]any{"stage": "won"})
	wantErr(t, err, domain.ErrNotFound, "")
	_, err = h.svc.Transition(ctx, member, h.entity("Company"), id, map[string]any{"stage": "won"})
	wantErr(t, err, domain.ErrNotFound, "")
}

func TestStatisticsAndExportGates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deals := h.entity("Deal")

	if _, err := h.svc.Statistics(ctx, member, deals, url.Values{}); err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	_, _, err := h.svc.Export(ctx, member, deals, url.Values{})
	wantErr(t, err, domain.ErrForbidden, "")

	h.repo.Selected = []model.Record{{"id": int64(1), "title": "Big"}}
	cols, items, err := h.svc.Export(ctx, manager, deals, url.Values{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(items) != 1 || cols[0] != "id" || cols[1] != "title" {
		t.Fatalf("unexpected export: %v %v", cols, items)
	}
}

func TestAttachReplacesBlob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.entity("Company")
	company := h.repo.Seed(e, model.Record{"name": "Acme", "logo": "logos/old.png"})
	id := company["id"].(int64)

	_, err := h.svc.Attach(ctx, member, e, id, "logo", Upload{Body: strings.NewReader("txt"), Filename: "a.txt", ContentType: "text/plain", Size: 3})
	wantErr(t, err, domain.ErrValidation, "")

	rec, err := h.svc.Attach(ctx, member, e, id, "logo", Upload{Body: strings.NewReader("png"), Filename: "new.png", ContentType: "image/png", Size: 3})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if rec["logo"] != "logos/new.png" {
		t.Fatalf("logo = %v", rec["logo"])
	}
	if diff := cmp.Diff([]string{"logos/old.png"}, h.blobs.deleted); diff != "" {
		t.Fatalf("deleted (-want +got):\n%s", diff)
	}

	_, err = h.svc.Attach(ctx, member, e, id, "name", Upload{})
	wantErr(t, err, domain.ErrNotFound, "")
}

func TestAvatarRequiresOwnerOrAdmin(t *testing.T) {
	h := newHarness(t)
	users := h.entity("User")
	up := Upload{Body: strings.NewReader("png"), Filename: "me.png", ContentType: "image/png", Size: 3}

	_, err := h.svc.Attach(context.Background(), member, users, 6, "avatar", up)
	wantErr(t, err, domain.ErrForbidden, "")
	if _, err := h.svc.Attach(context.Background(), member, users, 5, "avatar", up); err != nil {
		t.Fatalf("own avatar: %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	h := newHarness(t)
	h.pub.err = errors.New("nats down")
	if _, err := h.svc.Create(context.Background(), member, h.entity("Company"), map[string]any{"name": "Acme"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}
