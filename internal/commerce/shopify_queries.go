package commerce

const productFields = `
fragment ProductFields on Product {
  id
  handle
  title
  description
  vendor
  productType
  onlineStoreUrl
  featuredImage { url }
  priceRangeV2 { minVariantPrice { amount currencyCode } }
  variants(first: 10) {
    edges { node { id title price availableForSale inventoryQuantity } }
  }
}`

const searchProductsQuery = `
query SearchProducts($first: Int!, $query: String!) {
  products(first: $first, query: $query, sortKey: RELEVANCE) {
    edges { node { ...ProductFields } }
  }
}` + productFields

const getProductQuery = `
query GetProduct($id: ID!) {
  product(id: $id) { ...ProductFields }
}` + productFields

const createCheckoutMutation = `
mutation CreateCheckout($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      invoiceUrl
      totalPriceSet { shopMoney { amount currencyCode } }
    }
    userErrors { field message }
  }
}`

const findOrderQuery = `
query FindOrder($query: String!) {
  orders(first: 1, query: $query) {
    edges {
      node {
        id
        name
        email
        createdAt
        displayFinancialStatus
        displayFulfillmentStatus
        totalPriceSet { shopMoney { amount currencyCode } }
        fulfillments(first: 5) {
          trackingInfo(first: 5) { company number url }
        }
      }
    }
  }
}`

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type moneyBag struct {
	ShopMoney moneyV2 `json:"shopMoney"`
}

type productNode struct {
	ID             string `json:"id"`
	Handle         string `json:"handle"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Vendor         string `json:"vendor"`
	ProductType    string `json:"productType"`
	OnlineStoreURL string `json:"onlineStoreUrl"`
	FeaturedImage  *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	PriceRangeV2 struct {
		MinVariantPrice moneyV2 `json:"minVariantPrice"`
	} `json:"priceRangeV2"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID                string `json:"id"`
				Title             string `json:"title"`
				Price             string `json:"price"`
				AvailableForSale  bool   `json:"availableForSale"`
				InventoryQuantity int    `json:"inventoryQuantity"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

type searchProductsData struct {
	Products struct {
		Edges []struct {
			Node productNode `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

type getProductData struct {
	Product *productNode `json:"product"`
}

type createCheckoutData struct {
	DraftOrderCreate struct {
		DraftOrder *struct {
			ID            string   `json:"id"`
			InvoiceURL    string   `json:"invoiceUrl"`
			TotalPriceSet moneyBag `json:"totalPriceSet"`
		} `json:"draftOrder"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
	} `json:"draftOrderCreate"`
}

type findOrderData struct {
	Orders struct {
		Edges []struct {
			Node struct {
				ID                       string   `json:"id"`
				Name                     string   `json:"name"`
				Email                    string   `json:"email"`
				CreatedAt                string   `json:"createdAt"`
				DisplayFinancialStatus   string   `json:"displayFinancialStatus"`
				DisplayFulfillmentStatus string   `json:"displayFulfillmentStatus"`
				TotalPriceSet            moneyBag `json:"totalPriceSet"`
				Fulfillments             []struct {
					TrackingInfo []struct {
						Company string `json:"company"`
						Number  string `json:"number"`
						URL     string `json:"url"`
					} `json:"trackingInfo"`
				} `json:"fulfillments"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}
