package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"court-booking-server/services"
)

// register handles customer registration
func (api *API) register(c *gin.Context) {
	var req services.RegisterInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	res, err := api.Auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

// login handles user authentication
func (api *API) login(c *gin.Context) {
	var req services.LoginInput
	if err := bind(c, &req); err != nil {
		respondError(c, api.Log, err)
		return
	}
	res, err := api.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// me returns the current authenticated user's profile
func (api *API) me(c *gin.Context) {
	user, err := api.Auth.Me(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, api.Log, err)
		return
	}
	respond(c, http.StatusOK, user)
}
