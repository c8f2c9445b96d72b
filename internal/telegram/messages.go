package telegram

import (
	"errors"

	"github.com/digkill/TiendiaBot/internal/billing"
	"github.com/digkill/TiendiaBot/internal/catalog"
	"github.com/digkill/TiendiaBot/internal/generation"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/tiendia"
)

const helpText = `Comandos:
/products - tus productos
/product <id> - ver un producto y generar
/generate <id> [front|back|kid|baby] - generar una imagen
/personalize <id> gender=female age=adult skin=medium body=slim - modelo personalizado
/gallery - tus imágenes generadas
/regenerate - repetir la última generación
/download - descargar la imagen generada
/delete_product <id>, /delete_image <id>
/balance - ver tus créditos
/buy [país] - comprar créditos
/notifications - avisos de créditos acreditados
/logout - cerrar sesión

Envía una foto para crear un producto nuevo. Cada imagen cuesta 50 créditos.`

const generatingText = "Generando tu imagen... Esto puede tardar unos segundos. Estamos aplicando IA para transformar tu producto."

// userMessage turns an error into the text shown in the chat. Screens are the
// last place errors travel to.
func userMessage(err error) string {
	var apiErr *tiendia.APIError
	switch {
	case errors.Is(err, generation.ErrInsufficientCredits):
		return "No tienes suficientes créditos para generar una imagen. Usa /buy para recargar."
	case errors.Is(err, generation.ErrBusy):
		return "Ya hay una generación en curso. Espera a que termine."
	case errors.Is(err, generation.ErrNoImageURL):
		return "La respuesta de la API no contenía una URL de imagen."
	case errors.Is(err, generation.ErrNothingToRegenerate):
		return "No hay una generación previa para repetir."
	case errors.Is(err, generation.ErrNoResult):
		return "No hay ninguna imagen generada para descargar."
	case errors.Is(err, session.ErrInvalidCredentials):
		return "Ingresa un email válido y una contraseña."
	case errors.Is(err, session.ErrMissingToken):
		return "No se pudo iniciar sesión. Intenta de nuevo."
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, catalog.ErrNotAuthenticated),
		errors.Is(err, generation.ErrNotAuthenticated),
		errors.Is(err, billing.ErrNotAuthenticated):
		return "Debes iniciar sesión. Usa /login."
	case errors.Is(err, billing.ErrUnknownPack):
		return "Por favor selecciona un pack de imágenes."
	case errors.Is(err, billing.ErrPackUnavailable):
		return "Ese pack no está disponible en tu país."
	case errors.Is(err, tiendia.ErrNoCheckoutURL):
		return "No se recibió la URL de pago."
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return "Ocurrió un error al conectar con el servidor."
	}
}
