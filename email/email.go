package email

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

func send(to, subject, body string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}
	if host == "" || port == "" || user == "" || pass == "" || from == "" {
		return fmt.Errorf("SMTP environment variables missing")
	}
	addr := fmt.Sprintf("%s:%s", host, port)
	auth := smtp.PlainAuth("", user, pass, host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body))
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}

func SendWelcome(to string) error {
	subject := "Welcome to Traveo"
	body := "Thanks for signing up. Your first activity is on us — enjoy the free trial!"
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] welcome sent to %s", to)
	return nil
}

func SendPasswordChanged(to string) error {
	subject := "Password updated"
	body := "Your password has been changed. If this wasn't you, contact support."
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] password change notification sent to %s", to)
	return nil
}

// SendPurchaseReceipt notifies the user a plan purchase was applied to the account.
func SendPurchaseReceipt(to, planName string) error {
	subject := "Purchase confirmed"
	body := fmt.Sprintf("Your %s plan is now active. Go create something worth remembering.", planName)
	if err := send(to, subject, body); err != nil {
		return err
	}
	log.Printf("[EMAIL] purchase receipt sent to %s plan=%s", to, planName)
	return nil
}
