package bot

import (
	"fmt"

	"bot-marketplace/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender é o subconjunto da API do Telegram usado pelo pacote
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Init inicializa o bot do Telegram
func Init(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if err.Error() == "Unauthorized" {
			return nil, fmt.Errorf("token do Telegram inválido ou expirado. Verifique o TELEGRAM_BOT_TOKEN no arquivo .env. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %w", err)
	}

	bot.Debug = false
	logger.Info("Bot autorizado", zap.String("usuario", bot.Self.UserName))
	return bot, nil
}

// sendHTML envia em HTML e, se o Telegram rejeitar a formatação, reenvia como texto puro
func sendHTML(api sender, msg tgbotapi.MessageConfig) error {
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := api.Send(msg); err != nil {
		logger.Warn("Erro ao enviar mensagem com HTML, tentando sem formatação", zap.Error(err))
		msg.ParseMode = ""
		if _, err2 := api.Send(msg); err2 != nil {
			return fmt.Errorf("enviar mensagem: %w", err2)
		}
	}
	return nil
}
