package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/client/models"
)

// Register prompts for username, email and password and creates an
// account. The user still has to log in afterwards.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}

	reg := models.Registration{Username: username, Email: email, Password: password}
	if err := models.Validate(reg); err != nil {
		a.session.SetError(err.Error())
		a.println(a.session.Err())
		return err
	}

	if err := a.session.Register(ctx, reg); err != nil {
		a.println("Registration failed:", a.session.Err())
		return err
	}

	a.println("Registration successful, you can log in now.")
	return nil
}

// Login prompts for credentials and opens a session. Failed attempts are
// reported inline and leave the user logged out.
func (a *App) Login(ctx context.Context) error {
	a.loginRequired.Store(false)

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}

	creds := models.Credentials{Email: email, Password: password}
	if err := models.Validate(creds); err != nil {
		a.session.SetError(err.Error())
		a.println(a.session.Err())
		return err
	}

	res := a.session.Login(ctx, creds)
	if !res.Success {
		a.println("Login failed:", res.Error)
		return res.Err
	}

	if u := a.session.User(); u != nil {
		a.println("Welcome,", u.DisplayName())
	} else {
		a.println("Logged in.")
	}
	return nil
}

// Logout drops the session and everything cached for it.
func (a *App) Logout(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		a.println("Not logged in.")
		return nil
	}
	a.session.Logout(ctx)
	a.comments.ClearAll()
	a.posts.Clear()
	a.println("Logged out.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		a.println("Not logged in.")
		return nil
	}

	if !a.session.HasUserData() {
		if err := a.session.LoadUserFromToken(ctx); err != nil {
			a.println("Session is no longer valid.")
			return err
		}
	}

	u := a.session.User()
	if u == nil {
		a.println("Logged in, profile not loaded.")
		return nil
	}
	a.printf("%s <%s> (id %s)\n", u.DisplayName(), u.Email, u.ID)
	if exp, ok := a.session.ExpiresAt(); ok {
		a.printf("Session expires %s (in %s)\n", exp.Local().Format(time.DateTime), time.Until(exp).Round(time.Minute))
	}
	return nil
}

// Profile shows the current profile and lets the user change email and
// password. Empty answers keep the current values.
func (a *App) Profile(ctx context.Context) error {
	u := a.session.User()
	if u == nil {
		if err := a.session.LoadUserFromToken(ctx); err != nil {
			a.println("Could not load profile.")
			return err
		}
		if u = a.session.User(); u == nil {
			return errors.New("profile unavailable")
		}
	}

	a.printf("Username: %s\nEmail:    %s\n", u.Username, u.Email)

	email, err := getSimpleText(a.reader, "New email (empty keeps "+u.Email+")", a.out)
	if err != nil {
		return err
	}
	if email == "" {
		email = u.Email
	}
	password, err := getPassword(a.reader, "New password (empty keeps current)", a.out)
	if err != nil {
		return err
	}

	upd := models.ProfileUpdate{Email: strings.TrimSpace(email), Password: password}
	if err := models.Validate(upd); err != nil {
		a.println(err.Error())
		return err
	}
	if upd.Email == u.Email && upd.Password == "" {
		a.println("Nothing to update.")
		return nil
	}

	if _, err := a.session.UpdateProfile(ctx, upd); err != nil {
		a.println("Error:", a.session.Err())
		return err
	}
	a.println("Profile updated.")
	return nil
}
