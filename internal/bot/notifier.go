package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// NotifyInterval é o intervalo mínimo entre mensagens enviadas ao canal
const NotifyInterval = 1100 * time.Millisecond

// TelegramNotifier publica as ofertas no canal configurado
type TelegramNotifier struct {
	api     sender
	limiter *rate.Limiter
}

// NewTelegramNotifier cria o notificador com limite de uma mensagem a cada NotifyInterval
func NewTelegramNotifier(api sender) *TelegramNotifier {
	return &TelegramNotifier{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(NotifyInterval), 1),
	}
}

// Send envia o texto HTML ao canal. channelID aceita ids numéricos ou @nome.
func (n *TelegramNotifier) Send(ctx context.Context, channelID, text string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("canal de notificação vazio")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	return sendHTML(n.api, channelMessage(channelID, text))
}

func channelMessage(channelID, text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	if !strings.HasPrefix(channelID, "@") {
		channelID = "@" + channelID
	}
	return tgbotapi.NewMessageToChannel(channelID, text)
}
